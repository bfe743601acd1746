package datatable

// TriggerCounters are owned by the host. Only their changes carry meaning.
type TriggerCounters struct {
	OpenFilters  int64
	OpenSettings int64
	Reset        int64
}

// EdgeDetector reports changes of an externally owned counter.
type EdgeDetector struct {
	last int64
}

// NewEdgeDetector primes the detector with the initial counter value, so the
// first observation of that value is not an edge.
func NewEdgeDetector(initial int64) EdgeDetector {
	return EdgeDetector{last: initial}
}

// Observe records value and reports whether it differs from the previous one.
func (e *EdgeDetector) Observe(value int64) bool {
	if value == e.last {
		return false
	}
	e.last = value
	return true
}

// Last returns the last observed value.
func (e EdgeDetector) Last() int64 { return e.last }

// Panel identifies an auxiliary panel owned by the table.
type Panel string

const (
	PanelFilters  Panel = "filters"
	PanelSettings Panel = "settings"
)

// PanelEffects is what one observation of the counters asks the table to do.
type PanelEffects struct {
	// Toggled lists panels whose state flipped, in filters, settings order.
	Toggled []Panel
	// Reset asks the owner to run a full view reset.
	Reset bool
}

// Changed reports whether the observation had any effect.
func (e PanelEffects) Changed() bool { return len(e.Toggled) > 0 || e.Reset }

// PanelSync turns trigger counter deltas into panel toggles. Both panels
// may be open at the same time.
type PanelSync struct {
	filters  EdgeDetector
	settings EdgeDetector
	reset    EdgeDetector

	filtersOpen  bool
	settingsOpen bool
}

// NewPanelSync starts with both panels closed and the detectors primed with
// the initial counters.
func NewPanelSync(initial TriggerCounters) *PanelSync {
	return &PanelSync{
		filters:  NewEdgeDetector(initial.OpenFilters),
		settings: NewEdgeDetector(initial.OpenSettings),
		reset:    NewEdgeDetector(initial.Reset),
	}
}

// Observe checks every counter and applies the resulting toggles.
func (p *PanelSync) Observe(c TriggerCounters) PanelEffects {
	var eff PanelEffects
	if p.filters.Observe(c.OpenFilters) {
		p.filtersOpen = !p.filtersOpen
		eff.Toggled = append(eff.Toggled, PanelFilters)
	}
	if p.settings.Observe(c.OpenSettings) {
		p.settingsOpen = !p.settingsOpen
		eff.Toggled = append(eff.Toggled, PanelSettings)
	}
	if p.reset.Observe(c.Reset) {
		eff.Reset = true
	}
	return eff
}

// IsOpen reports the state of a panel.
func (p *PanelSync) IsOpen(panel Panel) bool {
	switch panel {
	case PanelFilters:
		return p.filtersOpen
	case PanelSettings:
		return p.settingsOpen
	}
	return false
}

// FiltersOpen reports whether the filters panel is open.
func (p *PanelSync) FiltersOpen() bool { return p.filtersOpen }

// SettingsOpen reports whether the column settings panel is open.
func (p *PanelSync) SettingsOpen() bool { return p.settingsOpen }

// Close closes one panel without touching the counters.
func (p *PanelSync) Close(panel Panel) {
	switch panel {
	case PanelFilters:
		p.filtersOpen = false
	case PanelSettings:
		p.settingsOpen = false
	}
}

// CloseAll closes both panels, as a click outside of them does.
func (p *PanelSync) CloseAll() {
	p.filtersOpen = false
	p.settingsOpen = false
}
