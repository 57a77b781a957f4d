// Package luascript runs experiment scripts written in Lua against a kernel.
// Kernel errors are raised as Lua errors, so scripts can catch them with
// pcall.
package luascript

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/sarchlab/acpbridge/kernel"
)

// Runner owns a Lua state bound to a kernel.
type Runner struct {
	kernel *kernel.Kernel
	state  *lua.LState
}

// NewRunner creates a Lua state and registers the kernel functions into its
// globals.
func NewRunner(k *kernel.Kernel) *Runner {
	r := &Runner{
		kernel: k,
		state:  lua.NewState(),
	}

	r.register()

	return r
}

// Close releases the Lua state.
func (r *Runner) Close() {
	r.state.Close()
}

// RunFile executes a script file.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	r.state.SetContext(ctx)
	defer r.state.RemoveContext()

	return r.state.DoFile(path)
}

// RunString executes a script held in a string.
func (r *Runner) RunString(ctx context.Context, source string) error {
	r.state.SetContext(ctx)
	defer r.state.RemoveContext()

	return r.state.DoString(source)
}

// Global returns the value of a global variable of the script.
func (r *Runner) Global(name string) lua.LValue {
	return r.state.GetGlobal(name)
}

func (r *Runner) register() {
	functions := map[string]lua.LGFunction{
		"rtio_init":                   r.rtioInit,
		"rtio_output":                 r.rtioOutput,
		"rtio_output_wide":            r.rtioOutputWide,
		"rtio_input_timestamp":        r.rtioInputTimestamp,
		"rtio_input_data":             r.rtioInputData,
		"rtio_input_timestamped_data": r.rtioInputTimestampedData,
		"rtio_log":                    r.rtioLog,
		"now_mu":                      r.nowMu,
		"at_mu":                       r.atMu,
		"delay_mu":                    r.delayMu,
		"get_counter":                 r.getCounter,
		"batch_start":                 r.batchStart,
		"batch_end":                   r.batchEnd,
	}

	for name, f := range functions {
		r.state.SetGlobal(name, r.state.NewFunction(f))
	}
}

func raise(L *lua.LState, err error) int {
	L.RaiseError("%s", err.Error())
	return 0
}

func (r *Runner) rtioInit(_ *lua.LState) int {
	r.kernel.Init()
	return 0
}

func (r *Runner) rtioOutput(L *lua.LState) int {
	target := uint32(L.CheckInt64(1))
	data := int32(L.CheckInt64(2))

	if err := r.kernel.Output(target, data); err != nil {
		return raise(L, err)
	}

	return 0
}

func (r *Runner) rtioOutputWide(L *lua.LState) int {
	target := uint32(L.CheckInt64(1))
	tbl := L.CheckTable(2)

	data := make([]int32, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		lane, ok := tbl.RawGetInt(i).(lua.LNumber)
		if !ok {
			L.ArgError(2, "lanes must be numbers")
			return 0
		}

		data = append(data, int32(int64(lane)))
	}

	if err := r.kernel.OutputWide(target, data); err != nil {
		return raise(L, err)
	}

	return 0
}

func (r *Runner) rtioInputTimestamp(L *lua.LState) int {
	timeout := L.CheckInt64(1)
	channel := uint32(L.CheckInt64(2))

	ts, err := r.kernel.InputTimestamp(timeout, channel)
	if err != nil {
		return raise(L, err)
	}

	L.Push(lua.LNumber(ts))

	return 1
}

func (r *Runner) rtioInputData(L *lua.LState) int {
	channel := uint32(L.CheckInt64(1))

	data, err := r.kernel.InputData(channel)
	if err != nil {
		return raise(L, err)
	}

	L.Push(lua.LNumber(data))

	return 1
}

func (r *Runner) rtioInputTimestampedData(L *lua.LState) int {
	timeout := L.CheckInt64(1)
	channel := uint32(L.CheckInt64(2))

	td, err := r.kernel.InputTimestampedData(timeout, channel)
	if err != nil {
		return raise(L, err)
	}

	L.Push(lua.LNumber(td.Timestamp))
	L.Push(lua.LNumber(td.Data))

	return 2
}

func (r *Runner) rtioLog(L *lua.LState) int {
	msg := L.CheckString(1)

	if err := r.kernel.WriteLog([]byte(msg)); err != nil {
		return raise(L, err)
	}

	return 0
}

func (r *Runner) nowMu(L *lua.LState) int {
	L.Push(lua.LNumber(r.kernel.NowMu()))
	return 1
}

func (r *Runner) atMu(L *lua.LState) int {
	r.kernel.AtMu(L.CheckInt64(1))
	return 0
}

func (r *Runner) delayMu(L *lua.LState) int {
	r.kernel.DelayMu(L.CheckInt64(1))
	return 0
}

func (r *Runner) getCounter(L *lua.LState) int {
	L.Push(lua.LNumber(r.kernel.GetCounter()))
	return 1
}

func (r *Runner) batchStart(L *lua.LState) int {
	if err := r.kernel.BatchStart(); err != nil {
		return raise(L, err)
	}

	return 0
}

func (r *Runner) batchEnd(L *lua.LState) int {
	if err := r.kernel.BatchEnd(); err != nil {
		return raise(L, err)
	}

	return 0
}
