package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nergy-se/controlkit/pkg/alarm"
	"github.com/nergy-se/controlkit/pkg/api/v1/config"
	"github.com/nergy-se/controlkit/pkg/api/v1/types"
	"github.com/nergy-se/controlkit/pkg/component"
	"github.com/nergy-se/controlkit/pkg/component/builtin"
	"github.com/nergy-se/controlkit/pkg/connection"
	"github.com/nergy-se/controlkit/pkg/connection/file"
	"github.com/nergy-se/controlkit/pkg/connection/fiware"
	"github.com/nergy-se/controlkit/pkg/connection/mbus"
	"github.com/nergy-se/controlkit/pkg/connection/modbus"
	"github.com/nergy-se/controlkit/pkg/connection/mqtt"
	"github.com/nergy-se/controlkit/pkg/datapoint"
	"github.com/nergy-se/controlkit/pkg/entity"
	"github.com/nergy-se/controlkit/pkg/metrics"
	"github.com/nergy-se/controlkit/pkg/state"
	"github.com/sirupsen/logrus"
)

type App struct {
	wg       *sync.WaitGroup
	config   *config.CliConfig
	registry *component.Registry

	service     *config.ServiceConfig
	connections connection.Set
	components  []*component.Component

	alarms  *alarm.ActiveAlarms
	state   *state.Cache
	metrics *metrics.Metrics

	err   error
	mutex sync.Mutex
}

func New(config *config.CliConfig) *App {
	return &App{
		wg:       &sync.WaitGroup{},
		config:   config,
		registry: builtin.Registry(),
		alarms:   &alarm.ActiveAlarms{},
		state:    state.NewCache(),
		metrics:  metrics.New(),
	}
}

// Start loads the service configuration, connects the enabled interfaces,
// constructs all active components and starts the calculation loop.
// Any construction error aborts the start.
func (a *App) Start(ctx context.Context) error {
	svc, err := config.LoadServiceConfig(a.config.ConfigFile)
	if err != nil {
		return err
	}
	a.service = svc

	calculation, err := svc.ControllerSettings.TimeSettings.Calculation.Interval()
	if err != nil {
		return fmt.Errorf("calculation time settings: %w", err)
	}
	var calibration time.Duration
	if t := svc.ControllerSettings.TimeSettings.Calibration; t != nil {
		calibration, err = t.Interval()
		if err != nil {
			return fmt.Errorf("calibration time settings: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	a.connections, err = a.connect(ctx, svc)
	if err != nil {
		cancel()
		return err
	}

	static := a.readStatic(ctx)
	for _, cfg := range svc.ControllerComponents {
		if !cfg.IsActive() {
			logrus.WithField("component", cfg.ID).Info("component is not active, skipping")
			continue
		}
		c, err := component.New(a.registry, cfg, static)
		if err != nil {
			cancel()
			a.connections.Close()
			return err
		}
		a.components = append(a.components, c)
		a.state.Update(c.ID(), func(s *state.Status) {
			s.Type = c.Type()
			s.State = c.State().String()
		})
		logrus.WithFields(logrus.Fields{
			"component": c.ID(),
			"type":      c.Type(),
		}).Info("component ready")
	}
	if len(a.components) == 0 {
		logrus.Warn("no active components configured")
	}

	if a.config.HTTPAddress != "" {
		err = a.startHTTP(ctx, a.config.HTTPAddress)
		if err != nil {
			cancel()
			a.connections.Close()
			return err
		}
	}

	a.wg.Add(1)
	go func() {
		defer cancel()
		a.controllerLoop(ctx, calculation, calibration)
	}()
	return nil
}

// Wait blocks until the loop has stopped and returns the error that stopped it.
func (a *App) Wait() error {
	a.wg.Wait()
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.err
}

func (a *App) setErr(err error) {
	a.mutex.Lock()
	a.err = err
	a.mutex.Unlock()
}

func (a *App) connect(ctx context.Context, svc *config.ServiceConfig) (connection.Set, error) {
	var conns []connection.Connection
	if svc.Interfaces.File {
		conns = append(conns, file.New(a.config.InputFile, a.config.StaticDataFile, a.config.ResultsDir))
	}
	if svc.Interfaces.MQTT {
		c, err := mqtt.Start(ctx, a.wg, a.config.MQTTAddress, a.config.MQTTTopicPrefix)
		if err != nil {
			return nil, fmt.Errorf("error starting mqtt broker: %w", err)
		}
		c.Prepare(entitiesOn(svc, types.InterfaceMQTT))
		conns = append(conns, c)
	}
	if svc.Interfaces.Fiware {
		err := a.config.LoadToken()
		if err != nil {
			return nil, fmt.Errorf("error loading fiware token: %w", err)
		}
		conns = append(conns, fiware.New(fiware.Options{
			URL:         a.config.FiwareURL,
			Service:     a.config.FiwareService,
			ServicePath: a.config.FiwareServicePath,
			Timeout:     a.config.RequestTimeout,
			Token:       a.config.Token,
		}))
	}
	if svc.Interfaces.Modbus {
		if a.config.ModbusAddress == "" {
			return nil, fmt.Errorf("modbus interface enabled but no modbus address configured")
		}
		conns = append(conns, modbus.Dial(a.config.ModbusAddress, byte(a.config.ModbusSlaveID), a.config.RequestTimeout))
	}
	if svc.Interfaces.Mbus {
		conns = append(conns, mbus.New(mbus.NewSerial(a.config.MbusDevice)))
	}
	return connection.NewSet(conns...), nil
}

func entitiesOn(svc *config.ServiceConfig, iface types.Interface) []config.Entity {
	var out []config.Entity
	for _, group := range [][]config.Entity{svc.Inputs, svc.Outputs, svc.StaticData} {
		for _, e := range group {
			if e.Interface == iface {
				out = append(out, e)
			}
		}
	}
	return out
}

func (a *App) readStatic(ctx context.Context) []entity.Entity {
	return a.connections.ReadAll(ctx, a.service.StaticData, a.readError)
}

func (a *App) readError(e config.Entity, err error) {
	a.metrics.ReadError(string(e.Interface))
	logrus.WithFields(logrus.Fields{
		"entity":    e.ID,
		"interface": e.Interface,
	}).Errorf("error reading entity: %s", err)
}

func (a *App) controllerLoop(ctx context.Context, calculation, calibration time.Duration) {
	defer a.wg.Done()
	defer func() {
		err := a.connections.Close()
		if err != nil {
			logrus.Errorf("error closing connections: %s", err)
		}
	}()

	a.cycle(ctx, calculation)

	delay := nextDelay(time.Now(), calculation)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	logrus.Debug("scheduling next run in ", delay)

	var calibrate <-chan time.Time
	if calibration > 0 {
		ticker := time.NewTicker(calibration)
		defer ticker.Stop()
		calibrate = ticker.C
	}

	for {
		select {
		case <-timer.C:
			a.cycle(ctx, calculation)
			timer.Reset(nextDelay(time.Now(), calculation))
		case <-calibrate:
			err := a.calibrate(ctx)
			if err != nil {
				logrus.Errorf("stopping controller: %s", err)
				a.setErr(err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// cycle reads all entities, runs every component and dispatches the results.
func (a *App) cycle(ctx context.Context, interval time.Duration) {
	start := time.Now()
	snapshot := entity.Snapshot{
		InputEntities:  a.connections.ReadAll(ctx, a.service.Inputs, a.readError),
		OutputEntities: a.connections.ReadAll(ctx, a.service.Outputs, outputReadError),
		StaticEntities: a.readStatic(ctx),
	}

	var wbs []entity.WriteBack
	for _, c := range a.components {
		runStart := time.Now()
		out, err := c.Run(snapshot)
		a.metrics.ObserveRun(c.ID(), time.Since(runStart), err)
		a.report(c, out, err)
		wbs = append(wbs, out...)
	}

	err := a.connections.Dispatch(ctx, a.service, wbs)
	if err != nil {
		a.metrics.WriteError()
		logrus.Errorf("error dispatching results: %s", err)
	}

	err = writeHealthFile(a.config.HealthFile, time.Now())
	if err != nil {
		logrus.Error(err)
	}

	took := time.Since(start)
	overrun := took > interval
	a.metrics.ObserveCycle(took, overrun)
	if overrun {
		logrus.Warnf("calculation cycle took %s which is longer than the sampling time %s", took, interval)
	}
}

// Output entities may be write-only.
func outputReadError(e config.Entity, err error) {
	logrus.WithField("entity", e.ID).Debugf("output entity not readable: %s", err)
}

func (a *App) report(c *component.Component, wbs []entity.WriteBack, err error) {
	log := logrus.WithFields(logrus.Fields{
		"component": c.ID(),
		"type":      c.Type(),
	})
	now := time.Now()
	if err != nil {
		if a.alarms.Add(c.ID(), err.Error()) {
			log.Errorf("component run failed: %s", err)
		} else {
			log.Debugf("component run still failing: %s", err)
		}
		a.state.Update(c.ID(), func(s *state.Status) {
			s.State = c.State().String()
			s.LastError = err.Error()
		})
		return
	}

	if a.alarms.Remove(c.ID()) {
		log.Info("component recovered")
	}
	outputs := outputNames(c)
	var status state.Status
	a.state.Update(c.ID(), func(s *state.Status) {
		s.State = c.State().String()
		s.LastRun = &now
		s.LastError = ""
		s.Outputs = make(map[string]datapoint.Datapoint, len(wbs))
		for _, wb := range wbs {
			name := outputs[wb.EntityID+"/"+wb.AttributeID]
			s.Outputs[name] = datapoint.New(wb.Value, wb.Unit)
		}
		status = *s
	})
	a.metrics.SetOutputs(c.ID(), status.Map())
}

func outputNames(c *component.Component) map[string]string {
	m := make(map[string]string)
	for name, a := range c.IO().Outputs {
		m[a.Entity+"/"+a.Attribute] = name
	}
	return m
}

// calibrate re-reads static data and recalibrates every component.
func (a *App) calibrate(ctx context.Context) error {
	static := a.readStatic(ctx)
	var errs []error
	for _, c := range a.components {
		err := c.Calibrate(static)
		a.metrics.ObserveCalibration(c.ID(), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("calibration of component %s failed: %w", c.ID(), err))
			continue
		}
		now := time.Now()
		a.state.Update(c.ID(), func(s *state.Status) {
			s.Calibrated = &now
		})
		logrus.WithField("component", c.ID()).Debug("component calibrated")
	}
	return errors.Join(errs...)
}
