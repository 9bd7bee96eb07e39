package services

import (
	"sync"

	"github.com/geofix/location-core/logger"
	"github.com/geofix/location-core/types"
	"go.uber.org/zap"
)

// SimulatedProvider is an in-memory types.SensingProvider for demos and
// integration-style tests. It records start/stop calls, answers
// authorization prompts with a configurable status, and forwards emitted
// events to the bound sink on its own goroutine, the way a real platform
// binding delivers them.
type SimulatedProvider struct {
	log *zap.SugaredLogger

	mu                sync.Mutex
	sink              types.EventSink
	status            types.AuthorizationStatus
	grantOnRequest    types.AuthorizationStatus
	continuousRuns    bool
	significantRuns   bool
	continuousStarts  int
	significantStarts int
}

// NewSimulatedProvider creates a provider in the given initial
// authorization state. Prompts resolve to grantOnRequest.
func NewSimulatedProvider(initial, grantOnRequest types.AuthorizationStatus) *SimulatedProvider {
	return &SimulatedProvider{
		log:            logger.GetLogger().Named("simulated-provider"),
		status:         initial,
		grantOnRequest: grantOnRequest,
	}
}

// Bind attaches the event sink the provider delivers into.
func (p *SimulatedProvider) Bind(sink types.EventSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

func (p *SimulatedProvider) StartContinuousUpdates() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.continuousRuns = true
	p.continuousStarts++
	p.log.Debug("Continuous updates started")
}

func (p *SimulatedProvider) StopContinuousUpdates() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.continuousRuns = false
	p.log.Debug("Continuous updates stopped")
}

func (p *SimulatedProvider) StartSignificantChangeUpdates() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.significantRuns = true
	p.significantStarts++
	p.log.Debug("Significant-change updates started")
}

func (p *SimulatedProvider) StopSignificantChangeUpdates() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.significantRuns = false
	p.log.Debug("Significant-change updates stopped")
}

// RequestAuthorization resolves the prompt asynchronously with the
// configured status, mirroring how platforms deliver the user's answer via
// a delegate callback.
func (p *SimulatedProvider) RequestAuthorization(level types.AuthorizationLevel) {
	p.mu.Lock()
	if p.status != types.AuthorizationNotDetermined {
		p.mu.Unlock()
		return
	}
	p.status = p.grantOnRequest
	status := p.status
	sink := p.sink
	p.mu.Unlock()

	p.log.Infow("Authorization prompt answered", "level", level, "status", status)
	if sink != nil {
		go sink.OnAuthorizationChanged(status)
	}
}

func (p *SimulatedProvider) AuthorizationStatus() types.AuthorizationStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// SetAuthorizationStatus forces a status transition and notifies the sink,
// as if the user changed the setting in system preferences.
func (p *SimulatedProvider) SetAuthorizationStatus(status types.AuthorizationStatus) {
	p.mu.Lock()
	p.status = status
	sink := p.sink
	p.mu.Unlock()

	if sink != nil {
		go sink.OnAuthorizationChanged(status)
	}
}

// EmitLocations delivers a batch of readings to the sink.
func (p *SimulatedProvider) EmitLocations(batch ...types.Location) {
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()

	if sink != nil {
		go sink.OnLocationsUpdated(batch)
	}
}

// EmitFailure delivers a provider failure to the sink.
func (p *SimulatedProvider) EmitFailure(err error) {
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()

	if sink != nil {
		go sink.OnFailure(err)
	}
}

// ContinuousActive reports whether the continuous session is running.
func (p *SimulatedProvider) ContinuousActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.continuousRuns
}

// SignificantActive reports whether the significant-change session is running.
func (p *SimulatedProvider) SignificantActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.significantRuns
}

// ContinuousStarts returns how many times the continuous session was started.
func (p *SimulatedProvider) ContinuousStarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.continuousStarts
}

// SignificantStarts returns how many times the significant session was started.
func (p *SimulatedProvider) SignificantStarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.significantStarts
}
