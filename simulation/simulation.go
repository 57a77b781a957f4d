// Package simulation holds the services that a simulation run shares: the
// engine, the data recorder, the task tracer, and the monitor.
package simulation

import (
	"fmt"

	"github.com/sarchlab/acpbridge/datarecording"
	"github.com/sarchlab/acpbridge/monitoring"
	"github.com/sarchlab/acpbridge/sim"
	"github.com/sarchlab/acpbridge/tracing"
)

// A Simulation provides the service requires to define a simulation.
type Simulation struct {
	id     string
	engine sim.Engine

	dataRecorder datarecording.DataRecorder
	monitor      *monitoring.Monitor
	monitorURL   string
	visTracer    *tracing.DBTracer

	components    []sim.Component
	compNameIndex map[string]int
	ports         []sim.Port
	portNameIndex map[string]int
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() sim.Engine {
	return s.engine
}

// GetDataRecorder returns the data recorder used in the simulation. It is nil
// if recording is disabled.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation. It is nil if
// monitoring is disabled.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitoring page.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// GetVisTracer returns the tracer that writes tasks into the data recorder.
// It is nil if recording is disabled.
func (s *Simulation) GetVisTracer() *tracing.DBTracer {
	return s.visTracer
}

// RegisterComponent registers a component with the simulation. The
// component is also registered with the monitor and the tracer when they
// exist.
func (s *Simulation) RegisterComponent(c sim.Component) {
	compName := c.Name()
	if _, found := s.compNameIndex[compName]; found {
		panic(fmt.Sprintf("component %s already registered", compName))
	}

	s.components = append(s.components, c)
	s.compNameIndex[compName] = len(s.components) - 1

	for _, p := range c.Ports() {
		s.registerPort(p)
	}

	if s.monitor != nil {
		s.monitor.RegisterComponent(c)
	}

	if s.visTracer != nil {
		tracing.CollectTrace(c, s.visTracer)
	}
}

func (s *Simulation) registerPort(p sim.Port) {
	portName := p.Name()
	if _, found := s.portNameIndex[portName]; found {
		panic(fmt.Sprintf("port %s already registered", portName))
	}

	s.ports = append(s.ports, p)
	s.portNameIndex[portName] = len(s.ports) - 1
}

// Components returns all the registered components in registration order.
func (s *Simulation) Components() []sim.Component {
	return s.components
}

// GetComponentByName returns the component with the given name, or nil.
func (s *Simulation) GetComponentByName(name string) sim.Component {
	index, found := s.compNameIndex[name]
	if !found {
		return nil
	}

	return s.components[index]
}

// GetPortByName returns the port with the given name, or nil.
func (s *Simulation) GetPortByName(name string) sim.Port {
	index, found := s.portNameIndex[name]
	if !found {
		return nil
	}

	return s.ports[index]
}

// Terminate runs the end handlers, which write the unfinished tasks. It then
// stops the monitoring server and closes the database.
func (s *Simulation) Terminate() error {
	s.engine.Finished()

	if s.monitor != nil {
		s.monitor.StopServer()
	}

	if s.dataRecorder != nil {
		return s.dataRecorder.Close()
	}

	return nil
}
