package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iscsidb/internal/domain"
)

const sampleISCSIDConf = `#
# Open-iSCSI default configuration.
#
node.startup = automatic
node.session.auth.authmethod = CHAP
node.session.auth.username = initiator
node.session.auth.password = topsecret
node.session.timeo.replacement_timeout = 120
node.cnx[0].timeo.login_timeout = 30
node.cnx[0].iscsi.HeaderDigest = CRC32C,None
node.session.iscsi.FirstBurstLength = 65536
discovery.startup = automatic
discovery.type = isns
discovery.sendtargets.auth.authmethod = CHAP
discovery.sendtargets.auth.password_in = mutual
discovery.sendtargets.timeo.login_timeout = 20
discovery.slp.poll_interval = 60
discovery.slp.scopes = default,lab
`

func writeConf(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iscsid.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestBuildDefaults(t *testing.T) {
	d := BuildDefaults()

	assert.Equal(t, domain.DefaultNode(), d.Node)
	assert.Equal(t, domain.DiscoveryTypeSendTargets, d.SendTargets.Type)
	assert.Equal(t, domain.DiscoveryTypeSLP, d.SLP.Type)
	assert.Equal(t, domain.DiscoveryTypeISNS, d.ISNS.Type)

	rec, ok := d.Discovery(domain.DiscoveryTypeSLP)
	require.True(t, ok)
	assert.Same(t, d.SLP, rec)

	_, ok = d.Discovery(domain.DiscoveryType(9))
	assert.False(t, ok)
}

func TestLoadDefaultsMissingFile(t *testing.T) {
	log, _ := test.NewNullLogger()

	d, err := LoadDefaults(filepath.Join(t.TempDir(), "absent.conf"), log)
	require.NoError(t, err)
	assert.Equal(t, BuildDefaults(), d)
}

func TestLoadDefaultsUnreadable(t *testing.T) {
	log, _ := test.NewNullLogger()

	// a directory can be stat'ed but not read as a file
	_, err := LoadDefaults(t.TempDir(), log)
	assert.Error(t, err)
}

func TestLoadDefaultsApplies(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	d, err := LoadDefaults(writeConf(t, sampleISCSIDConf), log)
	require.NoError(t, err)

	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, e.Level, e.Message)
		assert.NotContains(t, e.Message, "topsecret")
		assert.NotContains(t, e.Message, "mutual")
	}

	n := d.Node
	assert.Equal(t, domain.StartupAutomatic, n.Startup)
	assert.Equal(t, domain.AuthMethodCHAP, n.Session.Auth.Method)
	assert.Equal(t, "initiator", n.Session.Auth.Username)
	assert.Equal(t, "topsecret", n.Session.Auth.Password)
	assert.Equal(t, len("topsecret"), n.Session.Auth.PasswordLength)
	assert.Equal(t, 120, n.Session.ReplacementTimeout)
	assert.Equal(t, 30, n.Conns[0].Timeouts.Login)
	assert.Equal(t, 15, n.Conns[1].Timeouts.Login, "only the active slot is described")
	assert.Equal(t, domain.DigestCRC32CNone, n.Conns[0].ISCSI.HeaderDigest)
	assert.Equal(t, 65536, n.Session.ISCSI.FirstBurstLength)

	st := d.SendTargets
	assert.Equal(t, domain.DiscoveryTypeSendTargets, st.Type, "shared discovery.type does not retype templates")
	assert.Equal(t, domain.StartupAutomatic, st.Startup)
	assert.Equal(t, domain.AuthMethodCHAP, st.SendTargets.Auth.Method)
	assert.Equal(t, "mutual", st.SendTargets.Auth.PasswordIn)
	assert.Equal(t, len("mutual"), st.SendTargets.Auth.PasswordLengthIn)
	assert.Equal(t, 20, st.SendTargets.Timeouts.Login)

	slp := d.SLP
	assert.Equal(t, domain.DiscoveryTypeSLP, slp.Type)
	assert.Equal(t, 60, slp.SLP.PollInterval)
	assert.Equal(t, []string{"default", "lab"}, slp.SLP.Scopes)

	assert.Equal(t, domain.DiscoveryTypeISNS, d.ISNS.Type)
	assert.Equal(t, domain.StartupAutomatic, d.ISNS.Startup)
}

func TestLoadDefaultsWarnsAndContinues(t *testing.T) {
	log, hook := test.NewNullLogger()

	conf := "node.tpgt 5\nnode.session.iscsi.ImmediateData = maybe\nnode.session.abort = 1\nnode.session.err_timeo.abort_timeout = 25\n"
	d, err := LoadDefaults(writeConf(t, conf), log)
	require.NoError(t, err)

	assert.Equal(t, 25, d.Node.Session.AbortTimeout)
	assert.Equal(t, 1, d.Node.Session.ISCSI.ImmediateData)
	assert.NotEmpty(t, hook.AllEntries())
}
