package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/iotworkbench/iotwb/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeComponent implements every capability with scripted results.
type fakeComponent struct {
	name     string
	ctype    ComponentType
	prereq   bool
	result   bool
	err      error
	calls    *[]string
	sessions []*CloudSession
}

func (f *fakeComponent) Name() string                 { return f.name }
func (f *fakeComponent) ComponentType() ComponentType { return f.ctype }

func (f *fakeComponent) CheckPrerequisites(ctx context.Context, phase Phase) (bool, error) {
	*f.calls = append(*f.calls, f.name+".check")
	return f.prereq, nil
}

func (f *fakeComponent) record(op string) (bool, error) {
	*f.calls = append(*f.calls, f.name+"."+op)
	return f.result, f.err
}

// compileOnly only supports Compile and Upload.
type compileOnly struct{ fakeComponent }

func (c *compileOnly) Compile(ctx context.Context) (bool, error) { return c.record("compile") }
func (c *compileOnly) Upload(ctx context.Context) (bool, error)  { return c.record("upload") }

// cloudService supports Provision and Deploy.
type cloudService struct{ fakeComponent }

func (c *cloudService) Provision(ctx context.Context, s *CloudSession) (bool, error) {
	c.sessions = append(c.sessions, s)
	return c.record("provision")
}

func (c *cloudService) Deploy(ctx context.Context, s *CloudSession) (bool, error) {
	c.sessions = append(c.sessions, s)
	return c.record("deploy")
}

// fakeDevice implements Device.
type fakeDevice struct {
	compileOnly
	folder      string
	envResult   bool
	settingsErr error
}

func (d *fakeDevice) DeviceType() DeviceType { return DeviceTypeEsp32 }
func (d *fakeDevice) DeviceFolder() string   { return d.folder }

func (d *fakeDevice) ConfigDeviceSettings(ctx context.Context) (bool, error) {
	*d.calls = append(*d.calls, d.name+".settings")
	return d.settingsErr == nil, d.settingsErr
}

func (d *fakeDevice) ConfigDeviceEnvironment(ctx context.Context, path string, s ScaffoldType) (bool, error) {
	*d.calls = append(*d.calls, d.name+".env")
	return d.envResult, nil
}

type recordingNotifier struct {
	infos, warns, errs []string
}

func (n *recordingNotifier) Info(m string)  { n.infos = append(n.infos, m) }
func (n *recordingNotifier) Warn(m string)  { n.warns = append(n.warns, m) }
func (n *recordingNotifier) Error(m string) { n.errs = append(n.errs, m) }

type scriptedPrompter struct {
	answers  []bool
	requests []PickRequest
}

func (p *scriptedPrompter) Pick(ctx context.Context, req PickRequest) (int, bool, error) {
	p.requests = append(p.requests, req)
	if len(p.answers) == 0 {
		return 0, true, nil
	}
	ok := p.answers[0]
	p.answers = p.answers[1:]
	return 0, ok, nil
}

func (p *scriptedPrompter) Confirm(ctx context.Context, message string) (bool, error) {
	return true, nil
}

func (p *scriptedPrompter) Input(ctx context.Context, prompt, def string) (string, bool, error) {
	return def, true, nil
}

type fakeAuth struct {
	calls   int
	session *CloudSession
	err     error
}

func (a *fakeAuth) Authenticate(ctx context.Context) (*CloudSession, error) {
	a.calls++
	return a.session, a.err
}

type denyGate struct{ deny string }

func (g *denyGate) Evaluate(ctx context.Context, req GateRequest) (*GateDecision, error) {
	if req.Component == g.deny {
		return &GateDecision{Allowed: false, Reasons: []string{"not in this subscription"}}, nil
	}
	return &GateDecision{Allowed: true}, nil
}

func newTestProject(t *testing.T, prompter Prompter) (*Project, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	p := NewProject(ProjectConfig{
		Root:     t.TempDir(),
		HostType: HostTypeWorkspace,
		Layout:   config.DefaultLayout(),
		Notifier: n,
		Prompter: prompter,
		Logger:   zerolog.Nop(),
	})
	return p, n
}

func newCompileOnly(name string, prereq, result bool, calls *[]string) *compileOnly {
	return &compileOnly{fakeComponent{name: name, ctype: ComponentTypeAzureFunctions, prereq: prereq, result: result, calls: calls}}
}

func newCloud(name string, prereq, result bool, calls *[]string) *cloudService {
	return &cloudService{fakeComponent{name: name, ctype: ComponentTypeIoTHub, prereq: prereq, result: result, calls: calls}}
}

func TestProject_AddComponent(t *testing.T) {
	p, _ := newTestProject(t, nil)
	var calls []string

	require.NoError(t, p.AddComponent(newCloud("hub", true, true, &calls)))
	require.Error(t, p.AddComponent(nil))

	// tagged Device without device operations
	bad := newCompileOnly("dev", true, true, &calls)
	bad.ctype = ComponentTypeDevice
	err := p.AddComponent(bad)
	require.Error(t, err)
	assert.True(t, IsInvariant(err))

	assert.Len(t, p.Components(), 1)
	assert.Equal(t, "provision,deploy", CapabilitiesOf(p.Components()[0]).String())
}

func TestProject_Compile(t *testing.T) {
	t.Run("prerequisite failure aborts the phase", func(t *testing.T) {
		var calls []string
		p, _ := newTestProject(t, nil)
		require.NoError(t, p.AddComponent(newCompileOnly("A", false, true, &calls)))
		require.NoError(t, p.AddComponent(newCompileOnly("B", true, true, &calls)))

		ok, err := p.Compile(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, []string{"A.check"}, calls)
		assert.NotContains(t, calls, "B.compile")
		assert.Equal(t, OutcomeFailed, p.Outcome().Result())
	})

	t.Run("compile failure continues with next component", func(t *testing.T) {
		var calls []string
		p, n := newTestProject(t, nil)
		require.NoError(t, p.AddComponent(newCompileOnly("A", true, false, &calls)))
		require.NoError(t, p.AddComponent(newCompileOnly("B", true, true, &calls)))

		ok, err := p.Compile(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"A.check", "A.compile", "B.check", "B.compile"}, calls)
		assert.Equal(t, []string{MsgCompileFailed}, n.errs)
		assert.True(t, p.Outcome().IsSucceeded())
		assert.Len(t, p.Outcome().History(), 2)
	})

	t.Run("components without the capability are skipped", func(t *testing.T) {
		var calls []string
		p, _ := newTestProject(t, nil)
		require.NoError(t, p.AddComponent(newCloud("hub", true, true, &calls)))

		ok, err := p.Compile(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, calls)
	})

	t.Run("fatal error propagates", func(t *testing.T) {
		var calls []string
		p, _ := newTestProject(t, nil)
		c := newCompileOnly("A", true, false, &calls)
		c.err = NewInvariantError("Unable to find the project folder.", nil)
		require.NoError(t, p.AddComponent(c))

		ok, err := p.Compile(context.Background())
		require.Error(t, err)
		assert.False(t, ok)
		assert.Equal(t, "Unable to find the project folder.", p.Outcome().Details())
	})
}

func TestProject_Upload(t *testing.T) {
	var calls []string
	p, n := newTestProject(t, nil)
	require.NoError(t, p.AddComponent(newCompileOnly("A", true, false, &calls)))
	require.NoError(t, p.AddComponent(newCompileOnly("B", false, true, &calls)))

	ok, err := p.Upload(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"A.check", "A.upload", "B.check"}, calls)
	assert.Equal(t, []string{MsgUploadFailed}, n.errs)
}

func TestProject_Provision(t *testing.T) {
	session := &CloudSession{SubscriptionID: "sub", ResourceGroup: "rg"}

	t.Run("nothing to provision does not authenticate", func(t *testing.T) {
		var calls []string
		p, n := newTestProject(t, &scriptedPrompter{})
		require.NoError(t, p.AddComponent(newCompileOnly("A", true, true, &calls)))
		auth := &fakeAuth{session: session}

		ok, err := p.Provision(context.Background(), auth)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, auth.calls)
		assert.Equal(t, []string{MsgNothingToProvision}, n.infos)
		assert.True(t, p.Outcome().IsSucceeded())
	})

	t.Run("provisions all items in order with progress", func(t *testing.T) {
		var calls []string
		prompter := &scriptedPrompter{}
		p, _ := newTestProject(t, prompter)
		hub := newCloud("hub", true, true, &calls)
		fn := newCloud("functions", true, true, &calls)
		require.NoError(t, p.AddComponent(hub))
		require.NoError(t, p.AddComponent(fn))
		auth := &fakeAuth{session: session}

		ok, err := p.Provision(context.Background(), auth)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, auth.calls)
		assert.Equal(t, []string{"hub.check", "functions.check", "hub.provision", "functions.provision"}, calls)

		require.Len(t, prompter.requests, 2)
		assert.Equal(t, "Provision process", prompter.requests[0].Placeholder)
		assert.Equal(t, ">> 1. hub   -   2. functions", prompter.requests[0].Items[0].Label)
		assert.Equal(t, "1. hub   -   >> 2. functions", prompter.requests[1].Items[0].Label)
		assert.Equal(t, "Click to continue", prompter.requests[1].Items[0].Detail)
		assert.Same(t, session, hub.sessions[0])
		assert.Same(t, session, fn.sessions[0])
	})

	t.Run("declined item aborts", func(t *testing.T) {
		var calls []string
		p, _ := newTestProject(t, &scriptedPrompter{answers: []bool{true, false}})
		require.NoError(t, p.AddComponent(newCloud("hub", true, true, &calls)))
		require.NoError(t, p.AddComponent(newCloud("functions", true, true, &calls)))

		ok, err := p.Provision(context.Background(), &fakeAuth{session: session})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NotContains(t, calls, "functions.provision")
		assert.True(t, p.Outcome().IsCanceled())
	})

	t.Run("failed item aborts with warning", func(t *testing.T) {
		var calls []string
		p, n := newTestProject(t, &scriptedPrompter{})
		require.NoError(t, p.AddComponent(newCloud("hub", true, false, &calls)))
		require.NoError(t, p.AddComponent(newCloud("functions", true, true, &calls)))

		ok, err := p.Provision(context.Background(), &fakeAuth{session: session})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, []string{MsgProvisionCancelled}, n.warns)
		assert.NotContains(t, calls, "functions.provision")
	})

	t.Run("incomplete session stops before prompting", func(t *testing.T) {
		var calls []string
		prompter := &scriptedPrompter{}
		p, _ := newTestProject(t, prompter)
		require.NoError(t, p.AddComponent(newCloud("hub", true, true, &calls)))

		ok, err := p.Provision(context.Background(), &fakeAuth{session: &CloudSession{SubscriptionID: "sub"}})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, prompter.requests)
	})

	t.Run("authentication error", func(t *testing.T) {
		var calls []string
		p, _ := newTestProject(t, &scriptedPrompter{})
		require.NoError(t, p.AddComponent(newCloud("hub", true, true, &calls)))

		_, err := p.Provision(context.Background(), &fakeAuth{err: errors.New("az not logged in")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "az not logged in")
	})

	t.Run("policy denial aborts", func(t *testing.T) {
		var calls []string
		n := &recordingNotifier{}
		p := NewProject(ProjectConfig{
			Root:     t.TempDir(),
			Layout:   config.DefaultLayout(),
			Notifier: n,
			Prompter: &scriptedPrompter{},
			Gate:     &denyGate{deny: "hub"},
			Logger:   zerolog.Nop(),
		})
		require.NoError(t, p.AddComponent(newCloud("hub", true, true, &calls)))

		ok, err := p.Provision(context.Background(), &fakeAuth{session: session})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NotContains(t, calls, "hub.provision")
		assert.Contains(t, n.warns, MsgProvisionCancelled)
	})
}

func TestProject_Deploy(t *testing.T) {
	session := &CloudSession{SubscriptionID: "sub", ResourceGroup: "rg"}

	t.Run("nothing to deploy", func(t *testing.T) {
		p, n := newTestProject(t, &scriptedPrompter{})
		auth := &fakeAuth{session: session}

		ok, err := p.Deploy(context.Background(), auth)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, auth.calls)
		assert.Equal(t, []string{MsgNothingToDeploy}, n.infos)
		assert.True(t, p.Outcome().IsSucceeded())
	})

	t.Run("declined item raises cancellation", func(t *testing.T) {
		var calls []string
		p, _ := newTestProject(t, &scriptedPrompter{answers: []bool{false}})
		require.NoError(t, p.AddComponent(newCloud("functions", true, true, &calls)))

		ok, err := p.Deploy(context.Background(), &fakeAuth{session: session})
		assert.False(t, ok)
		require.Error(t, err)
		assert.True(t, IsCancelled(err))
		assert.ErrorIs(t, err, ErrCancelled)
		assert.Equal(t, MsgDeployCancelled, UserMessage(err))
		assert.True(t, p.Outcome().IsCanceled())
	})

	t.Run("failed item raises terminal error", func(t *testing.T) {
		var calls []string
		p, _ := newTestProject(t, &scriptedPrompter{})
		require.NoError(t, p.AddComponent(newCloud("functions", true, false, &calls)))
		require.NoError(t, p.AddComponent(newCloud("asa", true, true, &calls)))

		_, err := p.Deploy(context.Background(), &fakeAuth{session: session})
		require.Error(t, err)
		assert.True(t, IsOperational(err))
		assert.Equal(t, "The deployment of functions failed.", UserMessage(err))
		assert.NotContains(t, calls, "asa.deploy")
	})

	t.Run("success", func(t *testing.T) {
		var calls []string
		p, n := newTestProject(t, &scriptedPrompter{})
		require.NoError(t, p.AddComponent(newCloud("functions", true, true, &calls)))

		ok, err := p.Deploy(context.Background(), &fakeAuth{session: session})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{MsgDeploySucceeded}, n.infos)
	})
}

func TestProject_ConfigureProjectEnvironmentCore(t *testing.T) {
	var calls []string
	p, _ := newTestProject(t, nil)
	d1 := &fakeDevice{compileOnly: *newCompileOnly("d1", true, true, &calls), envResult: false}
	d1.ctype = ComponentTypeDevice
	d2 := &fakeDevice{compileOnly: *newCompileOnly("d2", true, true, &calls), envResult: true}
	d2.ctype = ComponentTypeDevice
	require.NoError(t, p.AddComponent(newCloud("hub", true, true, &calls)))
	require.NoError(t, p.AddComponent(d1))
	require.NoError(t, p.AddComponent(d2))

	ok, err := p.ConfigureProjectEnvironmentCore(context.Background(), p.Root(), ScaffoldWorkspace)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"d1.env"}, calls)
	assert.Len(t, p.Devices(), 2)
}

func TestProject_ConfigDeviceSettings(t *testing.T) {
	var calls []string
	p, n := newTestProject(t, nil)
	d1 := &fakeDevice{compileOnly: *newCompileOnly("d1", true, true, &calls), settingsErr: errors.New("no port")}
	d1.ctype = ComponentTypeDevice
	d2 := &fakeDevice{compileOnly: *newCompileOnly("d2", true, true, &calls)}
	d2.ctype = ComponentTypeDevice
	require.NoError(t, p.AddComponent(d1))
	require.NoError(t, p.AddComponent(d2))

	assert.True(t, p.ConfigDeviceSettings(context.Background()))
	assert.Equal(t, []string{"d1.settings", "d2.settings"}, calls)
	assert.Equal(t, []string{"no port"}, n.errs)
}

func TestProgressLabel(t *testing.T) {
	assert.Equal(t, ">> 1. only", ProgressLabel([]string{"only"}, 0))
	assert.Equal(t, "1. a   -   2. b   -   >> 3. c", ProgressLabel([]string{"a", "b", "c"}, 2))
}
