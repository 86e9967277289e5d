// Package location reconciles the pickup and destination a rider is choosing.
// GPS fixes, typed text, map drags and picked suggestions all funnel through a
// Controller, which decides who wins and keeps lookups from racing.
package location

import (
	"context"
	"errors"
	"sync"

	"github.com/bwise1/ride_pinpoint/internal/lookup"
	"github.com/bwise1/ride_pinpoint/internal/model"
	"go.uber.org/zap"
)

const opQueueSize = 64

type gpsFix struct {
	coordinate model.Coordinate
	address    string
	// gen is the slot generation of the reverse lookup started for this fix.
	gen uint64
}

// fieldState is one field's selection plus its lookup lane. Whether a lookup
// is outstanding is read from slot.
type fieldState struct {
	model.SelectionState
	field       model.LocationField
	slot        taskSlot
	suggestions []model.AddressSuggestion
	lastGPS     *gpsFix
}

// Option customises a Controller.
type Option func(*Controller)

// WithOnChange registers fn to receive the projection after every change.
// fn runs on the controller goroutine and must not call back into it.
func WithOnChange(fn func(model.Projection)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// WithOnSelection registers fn to be told about every suggestion that ends
// up applied with a usable coordinate. Same rules as WithOnChange.
func WithOnSelection(fn func(model.LocationField, model.AddressSuggestion, model.Coordinate)) Option {
	return func(c *Controller) {
		c.onSelection = fn
	}
}

// Controller owns the selection state of one ride request screen. All state
// lives on a single goroutine; lookups run beside it and post their results
// back, where they are applied only if nothing newer has started for the
// same field.
type Controller struct {
	settings  Settings
	search    *DebouncedSearchQuery
	reverse   *ReverseGeocodeCoordinator
	estimator *RouteEstimator
	logger    *zap.Logger

	onChange    func(model.Projection)
	onSelection func(model.LocationField, model.AddressSuggestion, model.Coordinate)

	ctx       context.Context
	cancel    context.CancelFunc
	ops       chan func()
	done      chan struct{}
	closeOnce sync.Once

	// loop-owned
	pickup       *fieldState
	destination  *fieldState
	active       model.LocationField
	tier         model.ServiceTier
	customPickup bool
	routeSlot    taskSlot
	route        *model.Route
	estimate     *model.RouteEstimate
	notices      map[noticeScope]*notice
	noticeSeq    uint64
	dirty        bool
}

func New(geocoder lookup.GeocodingClient, search lookup.AddressSearchClient, router lookup.RoutingClient, settings Settings, logger *zap.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.LookupTimeout <= 0 {
		settings.LookupTimeout = DefaultSettings().LookupTimeout
	}
	if settings.DefaultTier == "" {
		settings.DefaultTier = model.TierStandard
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		settings:    settings,
		search:      NewDebouncedSearchQuery(search, settings),
		reverse:     NewReverseGeocodeCoordinator(geocoder, settings),
		estimator:   NewRouteEstimator(router, settings, logger),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		ops:         make(chan func(), opQueueSize),
		done:        make(chan struct{}),
		pickup:      &fieldState{field: model.FieldPickup},
		destination: &fieldState{field: model.FieldDestination},
		tier:        settings.DefaultTier,
		notices:     make(map[noticeScope]*notice),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.teardown()
			return
		case op := <-c.ops:
			op()
			if c.dirty {
				c.dirty = false
				if c.onChange != nil {
					c.onChange(c.project())
				}
			}
		}
	}
}

// post queues fn for the loop. It reports false once the controller is closed.
func (c *Controller) post(fn func()) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.ops <- fn:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// do runs fn on the loop and waits for it.
func (c *Controller) do(fn func()) error {
	applied := make(chan struct{})
	if !c.post(func() {
		fn()
		close(applied)
	}) {
		return ErrClosed
	}
	select {
	case <-applied:
		return nil
	case <-c.done:
		select {
		case <-applied:
			return nil
		default:
			return ErrClosed
		}
	}
}

func (c *Controller) teardown() {
	c.pickup.slot.supersede()
	c.destination.slot.supersede()
	c.routeSlot.supersede()
	for scope, n := range c.notices {
		if n.timer != nil {
			n.timer.Stop()
		}
		delete(c.notices, scope)
	}
}

// Close cancels every timer and lookup. Results that arrive later are dropped.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
	})
	<-c.done
}

// Done is closed once the controller has shut down.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) Snapshot() (model.Projection, error) {
	var p model.Projection
	err := c.do(func() {
		p = c.project()
	})
	return p, err
}

func (c *Controller) lookupField(f model.LocationField) (*fieldState, error) {
	switch f {
	case model.FieldPickup:
		return c.pickup, nil
	case model.FieldDestination:
		return c.destination, nil
	default:
		return nil, ErrUnknownField
	}
}

// SetFromGPS applies a device fix unless the rider has taken manual control
// of the field.
func (c *Controller) SetFromGPS(field model.LocationField, coord model.Coordinate) error {
	fs, err := c.lookupField(field)
	if err != nil {
		return err
	}
	return c.do(func() {
		if fs.Origin == model.OriginCustomText || (field == model.FieldPickup && c.customPickup) {
			c.logger.Debug("gps fix ignored for custom field", zap.Stringer("field", field))
			return
		}
		if !c.settings.Bounds.Contains(coord) {
			c.useFallback(fs)
			c.report(scopeOf(field), lookup.ErrInvalidCoordinate)
			return
		}
		if c.repeatsGPS(fs, coord) {
			c.dirty = true
			return
		}
		fix := &gpsFix{coordinate: coord}
		fs.lastGPS = fix
		c.setCoordinate(fs, coord)
		fix.gen = c.resolveAddress(fs, coord, triggerGPS, model.OriginGPS)
	})
}

// repeatsGPS reports whether coord is the fix the field already shows, with
// its address either known or still being looked up.
func (c *Controller) repeatsGPS(fs *fieldState, coord model.Coordinate) bool {
	fix := fs.lastGPS
	if fix == nil || fix.coordinate != coord || fs.Coordinate == nil || *fs.Coordinate != coord {
		return false
	}
	if fs.slot.pending(fix.gen) {
		return true
	}
	return fix.address != "" && fs.Origin == model.OriginGPS && fs.AddressText == fix.address
}

// SetFromUserText shows the sanitized text at once and searches once typing
// pauses. The origin only changes when a suggestion is picked.
func (c *Controller) SetFromUserText(field model.LocationField, text string) error {
	fs, err := c.lookupField(field)
	if err != nil {
		return err
	}
	return c.do(func() {
		query, searchable := c.search.Prepare(text)
		fs.AddressText = query
		c.active = field
		c.dirty = true

		if !searchable {
			fs.slot.supersede()
			fs.suggestions = nil
			return
		}

		bias := c.bias(fs)
		c.launch(&fs.slot, c.search.Delay(), func(ctx context.Context) func() {
			results, err := c.search.Lookup(ctx, query, bias)
			return func() {
				if err != nil {
					fs.suggestions = nil
					c.report(scopeOf(field), err)
					return
				}
				fs.suggestions = results
				c.clearNotice(scopeOf(field))
			}
		})
	})
}

// SetFromMapDrag moves the field to the pinned position right away and
// resolves its address once the map has settled.
func (c *Controller) SetFromMapDrag(field model.LocationField, coord model.Coordinate) error {
	fs, err := c.lookupField(field)
	if err != nil {
		return err
	}
	return c.do(func() {
		if !c.settings.Bounds.Contains(coord) {
			if fs.Coordinate == nil {
				c.useFallback(fs)
			}
			c.report(scopeOf(field), lookup.ErrInvalidCoordinate)
			return
		}
		fs.Origin = model.OriginMapDrag
		fs.suggestions = nil
		c.setCoordinate(fs, coord)
		c.resolveAddress(fs, coord, triggerMapDrag, model.OriginMapDrag)
	})
}

// SelectSuggestion applies a picked search result, resolving its position
// first when the search only returned a placeholder.
func (c *Controller) SelectSuggestion(field model.LocationField, s model.AddressSuggestion) error {
	fs, err := c.lookupField(field)
	if err != nil {
		return err
	}
	return c.do(func() {
		fs.suggestions = nil
		fs.AddressText = s.DisplayText
		fs.Origin = model.OriginSearchSelection
		c.active = c.settings.DefaultFocus
		c.dirty = true

		if !s.Coordinate.IsPlaceholder() {
			fs.slot.supersede()
			c.applySelection(fs, s, s.Coordinate)
			return
		}

		bias := c.bias(fs)
		c.launch(&fs.slot, 0, func(ctx context.Context) func() {
			var (
				coord model.Coordinate
				err   error
			)
			if s.Handle != "" {
				coord, err = c.search.Resolve(ctx, s.Handle)
			} else {
				text := s.FullAddress
				if text == "" {
					text = s.DisplayText
				}
				coord, err = c.reverse.Forward(ctx, text, bias)
			}
			return func() {
				if err != nil {
					c.logger.Debug("suggestion not resolved",
						zap.Stringer("field", field), zap.String("suggestion", s.ID), zap.Error(err))
					coord = s.Coordinate
				}
				c.applySelection(fs, s, coord)
			}
		})
	})
}

// EnableCustomPickup hands the pickup field to the rider; GPS fixes stop
// touching it until DisableCustomPickup.
func (c *Controller) EnableCustomPickup() error {
	return c.do(func() {
		c.customPickup = true
		c.pickup.slot.supersede()
		c.pickup.Origin = model.OriginCustomText
		c.active = model.FieldPickup
		c.dirty = true
	})
}

// DisableCustomPickup returns the pickup to the last GPS fix, or to the
// fallback position when there never was one.
func (c *Controller) DisableCustomPickup() error {
	return c.do(func() {
		if !c.customPickup && c.pickup.Origin != model.OriginCustomText {
			return
		}
		c.customPickup = false
		fs := c.pickup
		fs.slot.supersede()
		fs.suggestions = nil
		c.clearNotice(scopePickup)
		c.dirty = true

		if fs.lastGPS == nil {
			c.useFallback(fs)
			return
		}
		fix := *fs.lastGPS
		fs.Origin = model.OriginGPS
		fs.AddressText = fix.address
		c.setCoordinate(fs, fix.coordinate)
		if fix.address == "" {
			fs.lastGPS.gen = c.resolveAddress(fs, fix.coordinate, triggerGPS, model.OriginGPS)
		}
	})
}

// Focus marks which field the rider is editing. FieldNone clears focus.
func (c *Controller) Focus(field model.LocationField) error {
	if field != model.FieldNone {
		if _, err := c.lookupField(field); err != nil {
			return err
		}
	}
	return c.do(func() {
		if c.active != field {
			c.active = field
			c.dirty = true
		}
	})
}

// SetServiceTier reprices the current route without fetching it again.
func (c *Controller) SetServiceTier(tier model.ServiceTier) error {
	if _, ok := c.settings.Tariff.Rates[tier]; !ok {
		return ErrUnknownTier
	}
	return c.do(func() {
		if c.tier == tier {
			return
		}
		c.tier = tier
		c.dirty = true
		if c.route != nil {
			c.applyRoute(*c.route)
		}
	})
}

// resolveAddress labels coord and sets origin once the lookup completes. It
// returns the slot generation of the lookup.
func (c *Controller) resolveAddress(fs *fieldState, coord model.Coordinate, t trigger, origin model.AddressOrigin) uint64 {
	return c.launch(&fs.slot, c.reverse.Delay(t), func(ctx context.Context) func() {
		address, err := c.reverse.Resolve(ctx, coord)
		return func() {
			fs.Origin = origin
			if err != nil {
				fs.AddressText = c.reverse.FallbackLabel()
				if !errors.Is(err, lookup.ErrNotFound) {
					c.report(scopeOf(fs.field), err)
				} else {
					c.logger.Debug("no address for position",
						zap.Stringer("field", fs.field), zap.Stringer("coordinate", coord))
				}
				return
			}
			fs.AddressText = address
			if origin == model.OriginGPS && fs.lastGPS != nil && fs.lastGPS.coordinate == coord {
				fs.lastGPS.address = address
			}
			c.clearNotice(scopeOf(fs.field))
		}
	})
}

func (c *Controller) applySelection(fs *fieldState, s model.AddressSuggestion, coord model.Coordinate) {
	if coord.IsPlaceholder() {
		c.setCoordinate(fs, coord)
		return
	}
	if !c.settings.Bounds.Contains(coord) {
		c.useFallback(fs)
		c.report(scopeOf(fs.field), lookup.ErrInvalidCoordinate)
		return
	}
	c.clearNotice(scopeOf(fs.field))
	c.setCoordinate(fs, coord)
	if c.onSelection != nil {
		c.onSelection(fs.field, s, coord)
	}
}

// useFallback puts the configured default position into fs and drops any
// lookup it had going.
func (c *Controller) useFallback(fs *fieldState) {
	fs.slot.supersede()
	fs.Origin = model.OriginFallback
	fs.AddressText = c.settings.FallbackLabel
	c.setCoordinate(fs, c.settings.Fallback)
	c.dirty = true
}

func (c *Controller) setCoordinate(fs *fieldState, coord model.Coordinate) {
	c.dirty = true
	if fs.Coordinate != nil && *fs.Coordinate == coord {
		return
	}
	fs.Coordinate = &coord
	c.endpointsChanged()
}

// endpointsChanged discards the estimate and schedules a new one when both
// ends are usable.
func (c *Controller) endpointsChanged() {
	c.routeSlot.supersede()
	c.route = nil
	c.estimate = nil
	c.clearNotice(scopeEstimate)
	c.dirty = true

	from, to, ok := c.endpoints()
	if !ok {
		return
	}
	c.launch(&c.routeSlot, c.estimator.Delay(), func(ctx context.Context) func() {
		route, err := c.estimator.Route(ctx, from, to)
		return func() {
			if err != nil {
				c.report(scopeEstimate, err)
				return
			}
			c.applyRoute(route)
		}
	})
}

func (c *Controller) applyRoute(route model.Route) {
	est, err := c.estimator.Price(route, c.tier)
	if err != nil {
		c.route = nil
		c.estimate = nil
		c.report(scopeEstimate, lookup.ErrNoRoute)
		return
	}
	c.route = &route
	c.estimate = &est
	c.clearNotice(scopeEstimate)
	c.dirty = true
}

func (c *Controller) endpoints() (model.Coordinate, model.Coordinate, bool) {
	p, d := c.pickup.Coordinate, c.destination.Coordinate
	if p == nil || d == nil {
		return model.Coordinate{}, model.Coordinate{}, false
	}
	for _, coord := range []model.Coordinate{*p, *d} {
		if coord.IsPlaceholder() || !c.settings.Bounds.Contains(coord) {
			return model.Coordinate{}, model.Coordinate{}, false
		}
	}
	return *p, *d, true
}

// bias centres lookups on the field itself, else on the other field.
func (c *Controller) bias(fs *fieldState) model.BiasRegion {
	region := model.BiasRegion{Bounds: c.settings.Bounds}
	other := c.destination
	if fs == c.destination {
		other = c.pickup
	}
	for _, candidate := range []*fieldState{fs, other} {
		if candidate.Coordinate != nil && !candidate.Coordinate.IsPlaceholder() {
			focus := *candidate.Coordinate
			region.Focus = &focus
			break
		}
	}
	return region
}

func (c *Controller) project() model.Projection {
	p := model.Projection{
		Pickup:       c.projectField(c.pickup),
		Destination:  c.projectField(c.destination),
		ActiveField:  c.active,
		ServiceTier:  c.tier,
		CustomPickup: c.customPickup,
		Estimate: model.EstimateProjection{
			IsResolving:  c.routeSlot.inFlight,
			ErrorMessage: c.noticeText(scopeEstimate),
		},
	}
	if c.estimate != nil {
		p.Estimate.ShowEstimate = true
		p.Estimate.DistanceFormatted = c.estimate.DistanceFormatted
		p.Estimate.FareFormatted = c.estimate.FareFormatted
		p.Estimate.Path = append([]model.Coordinate(nil), c.estimate.Path...)
	}
	return p
}

func (c *Controller) projectField(fs *fieldState) model.FieldProjection {
	fp := model.FieldProjection{
		AddressText:  fs.AddressText,
		Origin:       fs.Origin,
		IsResolving:  fs.slot.inFlight,
		ErrorMessage: c.noticeText(scopeOf(fs.field)),
		Suggestions:  append([]model.AddressSuggestion{}, fs.suggestions...),
	}
	if fs.Coordinate != nil {
		coord := *fs.Coordinate
		fp.Coordinate = &coord
	}
	return fp
}
