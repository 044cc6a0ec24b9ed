package runtime

import "fmt"

type PanicError struct{ Val any }

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }

type MissingHandlerError struct{ JobType string }

func (e *MissingHandlerError) Error() string {
	return "no handler registered for job_type=" + e.JobType
}

// Invoke runs the handler registered for the job. A missing handler or a panic
// fails the job on the spot; panics are bugs and never earn a retry.
func Invoke(reg *Registry, jc *Context) error {
	h, ok := reg.Get(jc.Job.JobType)
	if !ok {
		if jc.Log != nil {
			jc.Log.Warn("No handler registered for job_type")
		}
		jc.Fail("dispatch", &MissingHandlerError{JobType: jc.Job.JobType})
		return nil
	}
	return invoke(h, jc)
}

func invoke(h Handler, jc *Context) (runErr error) {
	defer func() {
		if r := recover(); r != nil {
			if jc.Log != nil {
				jc.Log.Error("Job handler panic", "panic", r)
			}
			jc.Fail("panic", &PanicError{Val: r})
			runErr = nil
		}
	}()
	return h.Run(jc)
}
