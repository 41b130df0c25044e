package launchd

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/dawn/errors"
)

func testDescriptor() *Descriptor {
	return &Descriptor{
		Label:                 "com.dawn.morning-briefing",
		ProgramArguments:      []string{"/opt/briefing/run", "--quiet"},
		WorkingDirectory:      "/opt/briefing",
		StartCalendarInterval: CalendarInterval{Hour: 7, Minute: 0},
		StandardOutPath:       "/Users/u/.dawn/logs/launchd.out.log",
		StandardErrorPath:     "/Users/u/.dawn/logs/launchd.err.log",
		EnvironmentVariables:  map[string]string{"BRIEFING_CITY": "Lisbon"},
	}
}

func TestDescriptor_Render(t *testing.T) {
	data, err := testDescriptor().Render()
	require.NoError(t, err)

	xml := string(data)
	assert.Contains(t, xml, "<key>Label</key>")
	assert.Contains(t, xml, "<string>com.dawn.morning-briefing</string>")
	assert.Contains(t, xml, "<key>StartCalendarInterval</key>")
	assert.Contains(t, xml, "<key>Hour</key>")
	assert.Contains(t, xml, "<integer>7</integer>")
	assert.Contains(t, xml, "<key>BRIEFING_CITY</key>")
}

func TestDescriptor_WriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "com.dawn.morning-briefing.plist")
	want := testDescriptor()

	require.NoError(t, want.Write(path))

	got, err := LoadDescriptor(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDescriptor_WriteSetupFailure(t *testing.T) {
	err := testDescriptor().Write(filepath.Join(t.TempDir(), "missing", "dir", "x.plist"))
	require.Error(t, err)
	assert.True(t, errors.IsSetupError(err))
}

func TestDescriptor_Validate(t *testing.T) {
	d := testDescriptor()
	d.ProgramArguments = []string{"run"}
	err := d.Validate()
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig), "relative program rejected")

	d = testDescriptor()
	d.Label = ""
	assert.Error(t, d.Validate())

	d = testDescriptor()
	d.ProgramArguments = nil
	assert.Error(t, d.Validate())
}

// exitErr returns a real *exec.ExitError
func exitErr(t *testing.T) error {
	t.Helper()
	err := exec.Command("false").Run()
	require.Error(t, err)
	return err
}

type fakeLaunchctl struct {
	calls  [][]string
	output string
	err    error
}

func (f *fakeLaunchctl) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return []byte(f.output), f.err
}

func newFake(output string, err error) (*Launchctl, *fakeLaunchctl) {
	f := &fakeLaunchctl{output: output, err: err}
	return &Launchctl{Bin: "launchctl", Run: f.run}, f
}

func TestLaunchctl_Register(t *testing.T) {
	l, f := newFake("", nil)
	require.NoError(t, l.Register(context.Background(), "/x/job.plist"))
	assert.Equal(t, [][]string{{"launchctl", "load", "-w", "/x/job.plist"}}, f.calls)
}

func TestLaunchctl_RegisterRejected(t *testing.T) {
	l, _ := newFake("Load failed: 5: Input/output error", exitErr(t))
	err := l.Register(context.Background(), "/x/job.plist")
	assert.True(t, errors.Is(err, errors.ErrRegistration))

	// Failure reported on stdout with a zero exit
	l, _ = newFake("/x/job.plist: Invalid property list", nil)
	err = l.Register(context.Background(), "/x/job.plist")
	assert.True(t, errors.Is(err, errors.ErrRegistration))
}

func TestLaunchctl_Unregister(t *testing.T) {
	l, f := newFake("", nil)
	require.NoError(t, l.Unregister(context.Background(), "com.dawn.x", "/x/job.plist"))
	assert.Equal(t, []string{"launchctl", "unload", "/x/job.plist"}, f.calls[0])

	l, f = newFake("", nil)
	require.NoError(t, l.Unregister(context.Background(), "com.dawn.x", ""))
	assert.Equal(t, []string{"launchctl", "remove", "com.dawn.x"}, f.calls[0])
}

func TestLaunchctl_UnregisterNotRegistered(t *testing.T) {
	l, _ := newFake("Could not find specified service", exitErr(t))
	err := l.Unregister(context.Background(), "com.dawn.x", "/x/job.plist")
	assert.True(t, errors.IsNotRegistered(err))

	l, _ = newFake("Unload failed: 5: Input/output error", exitErr(t))
	err = l.Unregister(context.Background(), "com.dawn.x", "/x/job.plist")
	require.Error(t, err)
	assert.False(t, errors.IsNotRegistered(err))
}

func TestLaunchctl_IsRegistered(t *testing.T) {
	listing := strings.Join([]string{
		"{",
		`	"StandardOutPath" = "/Users/u/.dawn/logs/launchd.out.log";`,
		`	"LimitLoadToSessionType" = "Aqua";`,
		`	"Label" = "com.dawn.morning-briefing";`,
		`	"OnDemand" = true;`,
		`	"LastExitStatus" = 256;`,
		`	"PID" = 4242;`,
		`	"Program" = "/opt/briefing/run";`,
		"};",
	}, "\n")

	l, f := newFake(listing, nil)
	reg, err := l.IsRegistered(context.Background(), "com.dawn.morning-briefing")
	require.NoError(t, err)
	assert.Equal(t, []string{"launchctl", "list", "com.dawn.morning-briefing"}, f.calls[0])
	assert.True(t, reg.Loaded)
	assert.Equal(t, 4242, reg.PID)
	require.NotNil(t, reg.LastExitStatus)
	assert.Equal(t, 256, *reg.LastExitStatus)
}

func TestLaunchctl_IsRegisteredNotLoaded(t *testing.T) {
	l, _ := newFake(`Could not find service "com.dawn.x" in domain for port`, exitErr(t))
	reg, err := l.IsRegistered(context.Background(), "com.dawn.x")
	require.NoError(t, err)
	assert.False(t, reg.Loaded)
}

func TestLaunchctl_Missing(t *testing.T) {
	l := &Launchctl{Bin: "/nonexistent/launchctl", Run: execRunner}
	_, err := l.IsRegistered(context.Background(), "com.dawn.x")
	assert.Error(t, err)
}

func TestCalendarInterval_String(t *testing.T) {
	assert.Equal(t, "07:05", CalendarInterval{Hour: 7, Minute: 5}.String())
	assert.Equal(t, "23:59", CalendarInterval{Hour: 23, Minute: 59}.String())
}

func TestLoadDescriptor_Missing(t *testing.T) {
	_, err := LoadDescriptor(filepath.Join(t.TempDir(), "absent.plist"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read descriptor")
}
