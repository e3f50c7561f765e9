package engine

import "github.com/calvinalkan/pmemcheck/pkg/interval"

// Logger is the durability log stream sink. Engine calls it only from
// TraceStore, Flush, Fence, Commit, Marker, and RegisterFile, never from
// the other Register/Deregister calls or the reporter, which are not part of the log format. A
// nil Logger disables logging entirely regardless of config.
type Logger interface {
	Store(addr, value, size uint64, active bool)
	Flush(alignedAddr, alignedSize uint64)
	Fence()
	Commit()
	Marker(name string)
	RegisterFile(path string, addr, size, offset uint64)
}

// CallSiteProvider captures the guest call stack at the moment a store is
// traced. The dynamic binary translation host that would supply a real one
// is out of scope here; tests and the replay driver supply a stub.
type CallSiteProvider func() CallSite

// Engine is the durability checker's core: two region registries, a store
// tracker, the state machine, and the reporter, wired together the way the
// system's data-flow moves a traced store from DIRTY through COMMITTED.
type Engine struct {
	config GlobalConfig

	persistentMappings *Registry
	loggableRegions    *Registry
	tracker            *Tracker

	superblock uint64
	callSite   CallSiteProvider

	logger          Logger
	globalLogToggle bool

	overwrites   []TrackedStore
	multiFlushes []TrackedStore
}

// New constructs an Engine. callSite may be nil, in which case traced
// stores are attributed an empty [CallSite]. logger may be nil to disable
// logging regardless of config.LogStores.
func New(config GlobalConfig, callSite CallSiteProvider, logger Logger) *Engine {
	if callSite == nil {
		callSite = func() CallSite { return CallSite{} }
	}

	if config.FlushAlign == 0 {
		config.FlushAlign = 64
	}

	return &Engine{
		config:             config,
		persistentMappings: NewRegistry(),
		loggableRegions:    NewRegistry(),
		tracker:            NewTracker(),
		callSite:           callSite,
		logger:             logger,
	}
}

// RegisterMapping adds addr/size to the persistent-mappings registry
// (client opcode REGISTER_MAPPING).
func (e *Engine) RegisterMapping(addr, size uint64) {
	e.persistentMappings.Register(interval.Interval{Addr: addr, Size: size})
}

// RemoveMapping subtracts addr/size from the persistent-mappings registry
// (client opcode REMOVE_MAPPING).
func (e *Engine) RemoveMapping(addr, size uint64) {
	e.persistentMappings.Deregister(interval.Interval{Addr: addr, Size: size})
}

// ClassifyMapping implements client opcode CHECK_IS_MAPPING.
func (e *Engine) ClassifyMapping(addr, size uint64) interval.Classification {
	return e.persistentMappings.Classify(interval.Interval{Addr: addr, Size: size})
}

// PersistentRegions returns every registered persistent mapping, for
// PRINT_PMEM_MAPPINGS / print_pmem_regions.
func (e *Engine) PersistentRegions() []interval.Interval {
	return e.persistentMappings.Regions()
}

// AddLogRegion adds addr/size to loggable_regions (ADD_LOG_REGION).
func (e *Engine) AddLogRegion(addr, size uint64) {
	e.loggableRegions.Register(interval.Interval{Addr: addr, Size: size})
}

// RemoveLogRegion subtracts addr/size from loggable_regions (REMOVE_LOG_REGION).
func (e *Engine) RemoveLogRegion(addr, size uint64) {
	e.loggableRegions.Deregister(interval.Interval{Addr: addr, Size: size})
}

// LoggableRegions returns every registered loggable region, for
// print_log_regions.
func (e *Engine) LoggableRegions() []interval.Interval {
	return e.loggableRegions.Regions()
}

// StartLogging / StopLogging implement the LOG_STORES / NO_LOG_STORES
// client opcodes: toggling the global logging switch every other gate
// below consults.
func (e *Engine) StartLogging() { e.globalLogToggle = true }
func (e *Engine) StopLogging()  { e.globalLogToggle = false }

// logGateGeneral is the logging gate for every record kind except
// START/STOP/STORE: a logger must be configured and enabled, and either the
// global toggle is on or at least one loggable region is registered.
func (e *Engine) logGateGeneral() bool {
	return e.logger != nil && e.config.LogStores && (e.globalLogToggle || e.loggableRegions.Len() > 0)
}

// loggingActiveFor is the STORE-specific gate: log_stores
// is set, and either the global toggle is on or this particular store hits
// a loggable region. (Since the general gate already requires the global
// toggle or *some* loggable region to exist, requiring the toggle or *this*
// store's region membership is the stricter, correct combination.)
func (e *Engine) loggingActiveFor(iv interval.Interval) bool {
	if e.logger == nil || !e.config.LogStores {
		return false
	}

	return e.globalLogToggle || e.loggableRegions.ContainsAny(iv)
}

// Flush implements flush(base, size) and emits the FLUSH log
// record, using the aligned window, when active.
func (e *Engine) Flush(base, size uint64) {
	alignedBase := alignDown(base, e.config.FlushAlign)
	alignedEnd := alignUp(base+size, e.config.FlushAlign)

	if e.logGateGeneral() {
		e.logger.Flush(alignedBase, alignedEnd-alignedBase)
	}

	Flush(e.tracker, base, size, e.config.FlushAlign, e.config.CheckFlush, func(redundant TrackedStore) {
		if len(e.multiFlushes) >= MaxFlushErrorEvents {
			return // non-fatal, silently dropped
		}

		e.multiFlushes = append(e.multiFlushes, redundant)
	})
}

// Fence implements fence semantics: FLUSHED entries become FENCED and
// COMMITTED entries retire.
func (e *Engine) Fence() {
	if e.logGateGeneral() {
		e.logger.Fence()
	}

	Fence(e.tracker)
}

// Commit implements commit semantics: FENCED entries become COMMITTED.
func (e *Engine) Commit() {
	if e.logGateGeneral() {
		e.logger.Commit()
	}

	Commit(e.tracker)
}

// Marker emits one of the four reordering marker log lines; it has no
// state-machine effect.
func (e *Engine) Marker(name string) {
	if e.logGateGeneral() {
		e.logger.Marker(name)
	}
}

// RegisterFile resolves client opcode REGISTER_FILE: emits a REGISTER_FILE
// log line when active. The fd-to-pathname resolution itself is a host
// concern; callers pass the already-resolved path.
func (e *Engine) RegisterFile(path string, addr, size, offset uint64) {
	if e.logGateGeneral() {
		e.logger.RegisterFile(path, addr, size, offset)
	}
}

// Tracked returns a copy of every in-flight store, for debugging/tests.
func (e *Engine) Tracked() []TrackedStore {
	return e.tracker.Entries()
}

// Config returns the engine's configuration.
func (e *Engine) Config() GlobalConfig {
	return e.config
}

// Superblock returns the current superblock counter value.
func (e *Engine) Superblock() uint64 {
	return e.superblock
}
