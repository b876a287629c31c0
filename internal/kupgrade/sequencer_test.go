package kupgrade

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboman11/misc-utility/internal/inventory"
	"github.com/neboman11/misc-utility/internal/platform/ssh"
)

type fleetCommand struct {
	Host    string
	Command string
	Elevate bool
}

// fakeFleet simulates SSH access to a set of hosts and records every
// session and command in order.
type fakeFleet struct {
	connects []string
	commands []fleetCommand
	open     int
	maxOpen  int

	// respond overrides command results; the default serves the sample
	// sources file and madison output and succeeds everything else.
	respond func(host, command string) (ssh.Result, error)

	dialErr map[string]error
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{dialErr: make(map[string]error)}
}

func (f *fakeFleet) connect(_ context.Context, host string) (Session, error) {
	if err := f.dialErr[host]; err != nil {
		return nil, err
	}
	f.connects = append(f.connects, host)
	f.open++
	if f.open > f.maxOpen {
		f.maxOpen = f.open
	}
	return &fleetSession{fleet: f, host: host}, nil
}

func (f *fakeFleet) commandsFor(host string) []string {
	var cmds []string
	for _, c := range f.commands {
		if c.Host == host {
			cmds = append(cmds, c.Command)
		}
	}
	return cmds
}

type fleetSession struct {
	fleet  *fakeFleet
	host   string
	closed bool
}

func (s *fleetSession) Run(_ context.Context, command string, elevate bool) (ssh.Result, error) {
	if s.closed {
		return ssh.Result{}, fmt.Errorf("session to %s already closed", s.host)
	}
	s.fleet.commands = append(s.fleet.commands, fleetCommand{Host: s.host, Command: command, Elevate: elevate})

	if s.fleet.respond != nil {
		return s.fleet.respond(s.host, command)
	}
	return defaultRespond(command)
}

func defaultRespond(command string) (ssh.Result, error) {
	switch {
	case strings.HasPrefix(command, "cat "):
		return ssh.Result{Stdout: sampleSources}, nil
	case strings.HasPrefix(command, "apt-cache madison"):
		return ssh.Result{Stdout: sampleMadison}, nil
	default:
		return ssh.Result{}, nil
	}
}

func (s *fleetSession) Close() error {
	s.closed = true
	s.fleet.open--
	return nil
}

type fakeNotifier struct {
	messages []string
	err      error
}

func (n *fakeNotifier) Send(_ context.Context, message string) error {
	n.messages = append(n.messages, message)
	return n.err
}

type captureLogger struct {
	lines []string
}

func (l *captureLogger) Printf(format string, v ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func TestRun_NoControlHosts(t *testing.T) {
	t.Parallel()

	fleet := newFakeFleet()
	inv := &inventory.Inventory{Worker: []string{"10.0.0.2"}}
	seq := New(inv, fleet.connect, Options{Logger: &captureLogger{}})

	err := seq.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no control plane host")
	assert.Empty(t, fleet.connects, "nothing is contacted before the inventory check")
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	fleet := newFakeFleet()
	notifier := &fakeNotifier{}
	inv := &inventory.Inventory{
		Control: []string{"10.0.0.1"},
		Worker:  []string{"10.0.0.2"},
	}
	seq := New(inv, fleet.connect, Options{Notifier: notifier, Logger: &captureLogger{}})

	require.NoError(t, seq.Run(context.Background()))

	// One session per phase per host: versions on the control node, source
	// rewrites in fleet order, then upgrades in fleet order.
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.1", "10.0.0.2", "10.0.0.1", "10.0.0.2"}, fleet.connects)
	assert.Equal(t, 1, fleet.maxOpen, "one session open at a time")

	assert.Equal(t, []string{
		// version resolution
		"cat " + DefaultSourcesPath,
		"apt-cache madison kubeadm | head -1",
		// source rewrite
		"cat " + DefaultSourcesPath,
		"echo " + shellQuote(strings.TrimSuffix(strings.ReplaceAll(sampleSources, "v1.28/deb", "v1.29/deb"), "\n")) + " | tee /tmp/kubernetes.list",
		"mv /tmp/kubernetes.list " + DefaultSourcesPath,
		// full nine-step procedure with control branches
		"apt-mark unhold kubeadm kubelet kubectl",
		"apt-get update -y",
		"apt-get install -y kubeadm=1.29.4-00",
		"kubectl drain $(hostname) --ignore-daemonsets --delete-local-data",
		"kubeadm upgrade apply -y v1.29.4",
		"apt-get install -y kubelet=1.29.4-00 kubectl=1.29.4-00",
		"systemctl daemon-reload",
		"systemctl restart kubelet",
		"apt-mark hold kubeadm kubelet kubectl",
		"kubectl uncordon $(hostname)",
	}, fleet.commandsFor("10.0.0.1"))

	assert.Equal(t, []string{
		// source rewrite
		"cat " + DefaultSourcesPath,
		"echo " + shellQuote(strings.TrimSuffix(strings.ReplaceAll(sampleSources, "v1.28/deb", "v1.29/deb"), "\n")) + " | tee /tmp/kubernetes.list",
		"mv /tmp/kubernetes.list " + DefaultSourcesPath,
		// worker procedure: control branches skipped
		"apt-mark unhold kubeadm kubelet kubectl",
		"apt-get update -y",
		"apt-get install -y kubeadm=1.29.4-00",
		"apt-get install -y kubelet=1.29.4-00 kubectl=1.29.4-00",
		"systemctl daemon-reload",
		"systemctl restart kubelet",
		"apt-mark hold kubeadm kubelet kubectl",
	}, fleet.commandsFor("10.0.0.2"))

	require.Len(t, notifier.messages, 2)
	assert.Contains(t, notifier.messages[0], "v1.28")
	assert.Contains(t, notifier.messages[0], "v1.29.4")
	assert.Contains(t, notifier.messages[1], "completed")
}

func TestRun_ElevatesEveryProcedureCommand(t *testing.T) {
	t.Parallel()

	fleet := newFakeFleet()
	inv := &inventory.Inventory{Control: []string{"c1"}}
	seq := New(inv, fleet.connect, Options{Logger: &captureLogger{}})

	require.NoError(t, seq.Run(context.Background()))

	for _, c := range fleet.commands {
		if strings.HasPrefix(c.Command, "echo ") {
			// The tee staging step is the single unelevated write.
			assert.False(t, c.Elevate, c.Command)
			continue
		}
		assert.True(t, c.Elevate, c.Command)
	}
}

func TestRun_ApplyRunsExactlyOnce(t *testing.T) {
	t.Parallel()

	fleet := newFakeFleet()
	inv := &inventory.Inventory{
		Control: []string{"c1", "c2"},
		Worker:  []string{"w1"},
	}
	seq := New(inv, fleet.connect, Options{Logger: &captureLogger{}})

	require.NoError(t, seq.Run(context.Background()))

	applyHosts := []string{}
	for _, c := range fleet.commands {
		if strings.HasPrefix(c.Command, "kubeadm upgrade apply") {
			applyHosts = append(applyHosts, c.Host)
		}
	}
	assert.Equal(t, []string{"c1"}, applyHosts, "apply runs once, on the first control plane host")

	// The second control plane host still takes the drain/uncordon branches.
	c2 := strings.Join(fleet.commandsFor("c2"), "\n")
	assert.Contains(t, c2, "kubectl drain")
	assert.Contains(t, c2, "kubectl uncordon")

	w1 := strings.Join(fleet.commandsFor("w1"), "\n")
	assert.NotContains(t, w1, "kubectl drain")
	assert.NotContains(t, w1, "kubeadm upgrade apply")
	assert.NotContains(t, w1, "kubectl uncordon")
}

func TestRun_UnholdFailureHaltsFleet(t *testing.T) {
	t.Parallel()

	fleet := newFakeFleet()
	fleet.respond = func(host, command string) (ssh.Result, error) {
		if strings.HasPrefix(command, "apt-mark unhold") {
			return ssh.Result{ExitCode: 100}, &ssh.CommandError{
				Host: host, Command: command, ExitCode: 100, Stderr: "dpkg lock held",
			}
		}
		return defaultRespond(command)
	}
	inv := &inventory.Inventory{
		Control: []string{"c1"},
		Worker:  []string{"w1"},
	}
	seq := New(inv, fleet.connect, Options{Logger: &captureLogger{}})

	err := seq.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `step "unhold packages" failed on c1`)

	var cmdErr *ssh.CommandError
	assert.ErrorAs(t, err, &cmdErr)

	// No step after unhold ran on c1, and w1 was never upgraded (its only
	// commands are the earlier source rewrite).
	c1 := fleet.commandsFor("c1")
	assert.Equal(t, "apt-mark unhold kubeadm kubelet kubectl", c1[len(c1)-1])
	for _, cmd := range fleet.commandsFor("w1") {
		assert.NotContains(t, cmd, "apt-mark")
		assert.NotContains(t, cmd, "apt-get install")
	}
}

func TestRun_DialFailureAborts(t *testing.T) {
	t.Parallel()

	fleet := newFakeFleet()
	fleet.dialErr["c1"] = &ssh.ConnectionError{Host: "c1", Err: fmt.Errorf("connection refused")}
	inv := &inventory.Inventory{Control: []string{"c1"}, Worker: []string{"w1"}}
	seq := New(inv, fleet.connect, Options{Logger: &captureLogger{}})

	err := seq.Run(context.Background())
	require.Error(t, err)

	var connErr *ssh.ConnectionError
	assert.ErrorAs(t, err, &connErr)
	assert.Empty(t, fleet.commands)
}

func TestRun_VersionParseFailureAborts(t *testing.T) {
	t.Parallel()

	fleet := newFakeFleet()
	fleet.respond = func(_, command string) (ssh.Result, error) {
		if strings.HasPrefix(command, "cat ") {
			return ssh.Result{Stdout: "no version here\n"}, nil
		}
		return defaultRespond(command)
	}
	inv := &inventory.Inventory{Control: []string{"c1"}, Worker: []string{"w1"}}
	seq := New(inv, fleet.connect, Options{Logger: &captureLogger{}})

	err := seq.Run(context.Background())
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)

	// Only the version probe happened; no host was modified.
	assert.Equal(t, []string{"c1"}, fleet.connects)
}

func TestRun_NotifierFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	fleet := newFakeFleet()
	notifier := &fakeNotifier{err: fmt.Errorf("relay down")}
	logger := &captureLogger{}
	inv := &inventory.Inventory{Control: []string{"c1"}}
	seq := New(inv, fleet.connect, Options{Notifier: notifier, Logger: logger})

	require.NoError(t, seq.Run(context.Background()))

	logged := strings.Join(logger.lines, "\n")
	assert.Contains(t, logged, "notification failed")
}

func TestProcedureSteps_Order(t *testing.T) {
	t.Parallel()

	steps := procedureSteps("1.29.4")
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}

	assert.Equal(t, []string{
		"unhold packages",
		"refresh package index",
		"install kubeadm",
		"drain node",
		"apply control plane upgrade",
		"install kubelet and kubectl",
		"restart kubelet",
		"hold packages",
		"uncordon node",
	}, names)
}
