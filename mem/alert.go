package mem

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/joshuapare/execmem/internal/logger"
)

// AlertCode classifies a condition reported to an Alerter.
type AlertCode uint32

const (
	// DeadEnd marks an alert the system cannot continue from.
	DeadEnd AlertCode = 0x80000000

	// AlertMemCorrupt: the free list was found damaged while freeing, or
	// a boundary wall was overwritten.
	AlertMemCorrupt AlertCode = 0x01000005
	// AlertFreeTwice: a freed block overlaps memory that is already free.
	AlertFreeTwice AlertCode = 0x01000009
	// AlertBadFreeAddr: a freed block does not belong to the region or
	// pool it claims to come from.
	AlertBadFreeAddr AlertCode = 0x0100000E
	// AlertMemoryInsane: the free list was found damaged while allocating.
	AlertMemoryInsane AlertCode = 0x01000010
)

// Class returns the code without the DeadEnd bit.
func (c AlertCode) Class() AlertCode { return c &^ DeadEnd }

// Fatal reports whether the DeadEnd bit is set.
func (c AlertCode) Fatal() bool { return c&DeadEnd != 0 }

func (c AlertCode) String() string {
	var name string
	switch c.Class() {
	case AlertMemCorrupt:
		name = "MemCorrupt"
	case AlertFreeTwice:
		name = "FreeTwice"
	case AlertBadFreeAddr:
		name = "BadFreeAddr"
	case AlertMemoryInsane:
		name = "MemoryInsane"
	default:
		name = fmt.Sprintf("0x%08X", uint32(c.Class()))
	}
	if c.Fatal() {
		return name + "|DeadEnd"
	}
	return name
}

// Alert describes one detected condition.
type Alert struct {
	Code   AlertCode
	Region *Region // region being operated on, if any
	Addr   Addr    // address passed by the caller
	Size   uint64  // size passed by the caller
	Detail []string
}

func (a *Alert) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "alert %s: addr=%s size=%d", a.Code, a.Addr, a.Size)
	if a.Region != nil {
		fmt.Fprintf(&sb, " region=%s", a.Region)
	}
	for _, d := range a.Detail {
		sb.WriteString("; ")
		sb.WriteString(d)
	}
	return sb.String()
}

// Alerter receives alerts. For fatal codes an implementation is expected
// not to return; if it does, the operation that raised the alert is
// abandoned without touching the damaged structure.
type Alerter interface {
	Alert(a *Alert)
}

// AlerterFunc adapts a function to the Alerter interface.
type AlerterFunc func(a *Alert)

// Alert calls f(a).
func (f AlerterFunc) Alert(a *Alert) { f(a) }

// AlertError is the panic value of PanicAlerter.
type AlertError struct {
	Alert *Alert
	err   error
}

// Error returns the alert description.
func (e *AlertError) Error() string { return e.err.Error() }

// Unwrap exposes the underlying error, which carries the stack of the
// alerting call.
func (e *AlertError) Unwrap() error { return e.err }

// Format prints the stack with %+v.
func (e *AlertError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%+v", e.err)
		return
	}
	fmt.Fprint(s, e.Error())
}

// PanicAlerter logs the alert and panics with an *AlertError.
var PanicAlerter Alerter = AlerterFunc(panicAlert)

func panicAlert(a *Alert) {
	err := &AlertError{Alert: a, err: errors.New(a.String())}
	logger.L.Error("[MM] alert",
		"code", a.Code.String(),
		"addr", a.Addr.String(),
		"size", a.Size,
		"detail", a.Detail,
	)
	panic(err)
}

// AsAlert extracts the alert from a recovered panic value.
func AsAlert(v any) (*Alert, bool) {
	err, ok := v.(error)
	if !ok {
		return nil, false
	}
	var ae *AlertError
	if errors.As(err, &ae) {
		return ae.Alert, true
	}
	return nil, false
}
