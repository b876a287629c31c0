package kupgrade

import (
	"context"
	"errors"
	"fmt"

	"github.com/neboman11/misc-utility/internal/inventory"
)

// managedPackages are held between upgrades so routine apt runs never move
// them.
const managedPackages = "kubeadm kubelet kubectl"

// Step is one stage of the per-host upgrade procedure.
type Step struct {
	Name string

	// ControlOnly steps are skipped entirely on worker hosts.
	ControlOnly bool

	// ApplyStep marks the control plane upgrade apply, which runs on
	// exactly one host per fleet run.
	ApplyStep bool

	Commands []string
}

// procedureSteps returns the per-host upgrade procedure for the given full
// version, in its fixed execution order. All commands run elevated.
func procedureSteps(fullVersion string) []Step {
	return []Step{
		{
			Name:     "unhold packages",
			Commands: []string{"apt-mark unhold " + managedPackages},
		},
		{
			Name:     "refresh package index",
			Commands: []string{"apt-get update -y"},
		},
		{
			Name:     "install kubeadm",
			Commands: []string{fmt.Sprintf("apt-get install -y kubeadm=%s-00", fullVersion)},
		},
		{
			Name:        "drain node",
			ControlOnly: true,
			Commands:    []string{"kubectl drain $(hostname) --ignore-daemonsets --delete-local-data"},
		},
		{
			Name:        "apply control plane upgrade",
			ControlOnly: true,
			ApplyStep:   true,
			Commands:    []string{fmt.Sprintf("kubeadm upgrade apply -y v%s", fullVersion)},
		},
		{
			Name: "install kubelet and kubectl",
			Commands: []string{
				fmt.Sprintf("apt-get install -y kubelet=%s-00 kubectl=%s-00", fullVersion, fullVersion),
			},
		},
		{
			Name: "restart kubelet",
			Commands: []string{
				"systemctl daemon-reload",
				"systemctl restart kubelet",
			},
		},
		{
			Name:     "hold packages",
			Commands: []string{"apt-mark hold " + managedPackages},
		},
		{
			Name:        "uncordon node",
			ControlOnly: true,
			Commands:    []string{"kubectl uncordon $(hostname)"},
		},
	}
}

// Options configures a Sequencer. The zero value uses the apt version
// source against the default sources path, no notifier, and the standard
// log package.
type Options struct {
	// SourcesPath of the Kubernetes apt sources entry on every host.
	SourcesPath string

	// Versions resolves current/target versions; AptVersionSource if nil.
	Versions VersionSource

	// Notifier receives milestone messages; optional.
	Notifier Notifier

	// Logger receives progress output; the standard log package if nil.
	Logger Logger
}

// Sequencer drives the fleet upgrade.
type Sequencer struct {
	inv      *inventory.Inventory
	connect  SessionFactory
	versions VersionSource
	rewriter *SourceRewriter
	notifier Notifier
	log      Logger
}

// New creates a Sequencer over the given inventory, opening host sessions
// through connect.
func New(inv *inventory.Inventory, connect SessionFactory, opts Options) *Sequencer {
	s := &Sequencer{
		inv:      inv,
		connect:  connect,
		versions: opts.Versions,
		rewriter: &SourceRewriter{Path: opts.SourcesPath},
		notifier: opts.Notifier,
		log:      opts.Logger,
	}
	if s.versions == nil {
		s.versions = &AptVersionSource{SourcesPath: opts.SourcesPath}
	}
	if s.log == nil {
		s.log = stdLogger{}
	}
	return s
}

// Run executes the full fleet upgrade: resolve the target version on the
// first control plane host, rewrite sources everywhere, then upgrade every
// host strictly one at a time. Any error is fatal to the whole run.
func (s *Sequencer) Run(ctx context.Context) error {
	if len(s.inv.Control) == 0 {
		return errors.New("no control plane host found in inventory")
	}
	primary := s.inv.Control[0]

	currentMinor, latestFull, err := s.resolveVersions(ctx, primary)
	if err != nil {
		return err
	}
	targetMinor := MinorOf(latestFull)

	s.log.Printf("Current version: %s, latest available: %s", currentMinor, latestFull)
	s.notify(ctx, fmt.Sprintf(
		"Upgrading %d Kubernetes nodes from v%s to v%s", len(s.inv.Hosts()), currentMinor, latestFull))

	for _, host := range s.inv.Hosts() {
		s.log.Printf("Updating sources on %s...", host)
		if err := s.rewriteSources(ctx, host, targetMinor); err != nil {
			return err
		}
	}

	s.log.Printf("Upgrading control plane node: %s", primary)
	if err := s.upgradeHost(ctx, primary, true, true, latestFull); err != nil {
		return err
	}

	for _, host := range s.inv.Hosts() {
		if host == primary {
			continue
		}
		role, _ := s.inv.Role(host)
		control := role == inventory.RoleControl
		if control {
			s.log.Printf("Upgrading control plane node: %s", host)
		} else {
			s.log.Printf("Upgrading worker node: %s", host)
		}
		if err := s.upgradeHost(ctx, host, control, false, latestFull); err != nil {
			return err
		}
	}

	s.log.Printf("Kubernetes upgrade completed!")
	s.notify(ctx, fmt.Sprintf("Kubernetes upgrade to v%s completed on %d nodes", latestFull, len(s.inv.Hosts())))
	return nil
}

// resolveVersions queries the primary control plane host once; the result
// is authoritative for the whole fleet, which is assumed to share one
// upstream package index.
func (s *Sequencer) resolveVersions(ctx context.Context, primary string) (currentMinor, latestFull string, err error) {
	sess, err := s.connect(ctx, primary)
	if err != nil {
		return "", "", err
	}
	defer func() { _ = sess.Close() }()

	currentMinor, err = s.versions.CurrentMinor(ctx, sess)
	if err != nil {
		return "", "", err
	}
	latestFull, err = s.versions.LatestFull(ctx, sess)
	if err != nil {
		return "", "", err
	}
	return currentMinor, latestFull, nil
}

func (s *Sequencer) rewriteSources(ctx context.Context, host, targetMinor string) error {
	sess, err := s.connect(ctx, host)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	return s.rewriter.Rewrite(ctx, sess, targetMinor)
}

// upgradeHost runs the procedure on one host. applyUpgrade is true only for
// the first control plane host of the run.
func (s *Sequencer) upgradeHost(ctx context.Context, host string, control, applyUpgrade bool, fullVersion string) error {
	sess, err := s.connect(ctx, host)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	for _, step := range procedureSteps(fullVersion) {
		if step.ControlOnly && !control {
			continue
		}
		if step.ApplyStep && !applyUpgrade {
			continue
		}

		s.log.Printf("[%s] %s...", host, step.Name)
		for _, cmd := range step.Commands {
			if _, err := sess.Run(ctx, cmd, true); err != nil {
				return fmt.Errorf("step %q failed on %s: %w", step.Name, host, err)
			}
		}
	}

	return nil
}

func (s *Sequencer) notify(ctx context.Context, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, message); err != nil {
		s.log.Printf("notification failed (continuing): %v", err)
	}
}
