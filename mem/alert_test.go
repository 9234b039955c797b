package mem

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlertCode_String(t *testing.T) {
	require.Equal(t, "FreeTwice|DeadEnd", (AlertFreeTwice | DeadEnd).String())
	require.Equal(t, "MemoryInsane", AlertMemoryInsane.String())
	require.Equal(t, "0x01000001", AlertCode(0x01000001).String())
}

func TestAlertCode_ClassAndFatal(t *testing.T) {
	c := AlertMemCorrupt | DeadEnd
	require.True(t, c.Fatal())
	require.Equal(t, AlertMemCorrupt, c.Class())
	require.False(t, AlertMemCorrupt.Fatal())
}

func TestPanicAlerter_PanicsWithAlertError(t *testing.T) {
	a := &Alert{Code: AlertBadFreeAddr | DeadEnd, Addr: 0x2000, Size: 32, Detail: []string{"bad"}}

	v := func() (v any) {
		defer func() { v = recover() }()
		PanicAlerter.Alert(a)
		return nil
	}()
	require.NotNil(t, v)

	err, ok := v.(error)
	require.True(t, ok)
	var ae *AlertError
	require.True(t, errors.As(err, &ae))
	require.Same(t, a, ae.Alert)
	require.Contains(t, err.Error(), "BadFreeAddr")
	require.Contains(t, err.Error(), "0x2000")

	got, ok := AsAlert(v)
	require.True(t, ok)
	require.Same(t, a, got)

	// %+v carries the stack of the alerting call.
	require.Contains(t, fmt.Sprintf("%+v", ae), "panicAlert")
}

func TestAsAlert_OtherValues(t *testing.T) {
	_, ok := AsAlert("boom")
	require.False(t, ok)
	_, ok = AsAlert(errors.New("boom"))
	require.False(t, ok)
}

func TestSpace_RaiseForcesDeadEnd(t *testing.T) {
	rec := &recorder{}
	s := newTestSpace(t, WithAlerter(rec))
	s.Raise(&Alert{Code: AlertMemCorrupt})
	require.Len(t, rec.alerts, 1)
	require.True(t, rec.alerts[0].Code.Fatal())
}
