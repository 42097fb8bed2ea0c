package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tamos/tamos-client-go/internal/bridge"
	"github.com/tamos/tamos-client-go/internal/models"
	"github.com/tamos/tamos-client-go/internal/poller"
)

// SimulationRemote is the part of the remote client the simulation
// commands use
type SimulationRemote interface {
	ResetSimulation(ctx context.Context) error
	TriggerHeatmapGeneration(ctx context.Context) error
	FetchHeatmap(ctx context.Context) (models.HeatmapPayload, error)
	FetchRouteData(ctx context.Context) (models.RoutePayload, error)
}

// PollController is the part of the polling coordinator the commands drive
type PollController interface {
	Start(period time.Duration)
	Stop()
	StartServerSimulation(ctx context.Context)
	Stats() poller.Stats
}

// SimulationService dispatches simulation commands from the UI. Every
// remote call runs in the background; results arrive through the bridge
// and failures are only logged.
type SimulationService struct {
	remote SimulationRemote
	poll   PollController
	bridge *bridge.Bridge
	log    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSimulationService creates a simulation service
func NewSimulationService(remote SimulationRemote, poll PollController, b *bridge.Bridge, logger *log.Logger) *SimulationService {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SimulationService{
		remote: remote,
		poll:   poll,
		bridge: b,
		log:    logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// StartSimulation starts the server simulation and, shortly after, polling
func (s *SimulationService) StartSimulation() {
	s.poll.StartServerSimulation(s.ctx)
}

// ResetSimulation asks the server to clear its simulation data
func (s *SimulationService) ResetSimulation() {
	s.goCommand("reset simulation", s.remote.ResetSimulation)
}

// GenerateHeatmap asks the server to regenerate heatmap data
func (s *SimulationService) GenerateHeatmap() {
	s.goCommand("generate heatmap", s.remote.TriggerHeatmapGeneration)
}

// FetchHeatmap requests heatmap data and publishes it on heatmap-ready
func (s *SimulationService) FetchHeatmap() {
	s.goCommand("fetch heatmap", func(ctx context.Context) error {
		hm, err := s.remote.FetchHeatmap(ctx)
		if err != nil {
			return err
		}
		s.bridge.PublishHeatmap(hm)
		return nil
	})
}

// FetchRouteData requests the real-road trip data and publishes it on
// route-data-ready
func (s *SimulationService) FetchRouteData() {
	s.goCommand("fetch route data", func(ctx context.Context) error {
		rd, err := s.remote.FetchRouteData(ctx)
		if err != nil {
			return err
		}
		s.bridge.PublishRouteData(rd)
		return nil
	})
}

// StartPolling starts or restarts polling with the given period
func (s *SimulationService) StartPolling(period time.Duration) {
	s.poll.Start(period)
}

// StopPolling stops polling
func (s *SimulationService) StopPolling() {
	s.poll.Stop()
}

// PollStats reports the poller counters
func (s *SimulationService) PollStats() poller.Stats {
	return s.poll.Stats()
}

// ReportKeys forwards a key list to the UI unchanged
func (s *SimulationService) ReportKeys(keys []string) {
	if keys == nil {
		keys = []string{}
	}
	s.bridge.PublishKeys(keys)
}

// Close cancels outstanding commands and waits for them to return
func (s *SimulationService) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *SimulationService) goCommand(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(s.ctx); err != nil {
			s.log.Printf("[sim] %s failed: %v", name, err)
		}
	}()
}
