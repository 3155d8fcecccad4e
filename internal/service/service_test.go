package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iscsidb/internal/codec"
	"iscsidb/internal/domain"
	"iscsidb/internal/loader"
	"iscsidb/internal/repository"
)

type testDB struct {
	*DB
	out  *bytes.Buffer
	conf string
}

// newTestDB opens a handle over fresh tables in a temp directory. conf is
// written as the iscsid.conf when non-empty.
func newTestDB(t *testing.T, conf string) *testDB {
	t.Helper()
	dir := t.TempDir()
	confPath := filepath.Join(dir, "iscsid.conf")
	if conf != "" {
		require.NoError(t, os.WriteFile(confPath, []byte(conf), 0644))
	}

	log, _ := test.NewNullLogger()
	out := &bytes.Buffer{}
	db, err := Open(Options{
		ConfigFile:    confPath,
		DiscoveryPath: filepath.Join(dir, "db", "discovery.db"),
		NodePath:      filepath.Join(dir, "db", "node.db"),
		Logger:        log,
		Output:        out,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &testDB{DB: db, out: out, conf: confPath}
}

func sendTargets(addr string, port int) *domain.DiscoveryRecord {
	drec := domain.DefaultDiscovery(domain.DiscoveryTypeSendTargets)
	drec.SendTargets.Address = addr
	drec.SendTargets.Port = port
	return drec
}

func node(name, addr string, port, tpgt int) *domain.NodeRecord {
	rec := domain.DefaultNode()
	rec.Name = name
	rec.TPGT = tpgt
	rec.Conns[0].Address = addr
	rec.Conns[0].Port = port
	return rec
}

func TestAddDiscoveryIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, "")

	events := make(chan Event, 4)
	db.Events().Subscribe(events)

	drec := sendTargets("10.1.1.2", 3260)
	require.NoError(t, db.AddDiscovery(ctx, drec))
	assert.Equal(t, uint32(0x0fe750), drec.ID)
	require.NoError(t, db.AddDiscovery(ctx, sendTargets("10.1.1.2", 3260)))

	n, err := db.PrintDiscovery(ctx, AllRecords)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "[0fe750] 10.1.1.2:3260 via sendtargets\n", db.out.String())

	got, err := db.ReadDiscovery(ctx, 0x0fe750)
	require.NoError(t, err)
	assert.Equal(t, drec, got)

	assert.Equal(t, EventDiscoveryAdded, (<-events).Type)
	assert.Equal(t, EventDiscoveryUpdated, (<-events).Type)
}

func TestAddDiscoveryMerges(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, "")

	first := sendTargets("10.0.0.1", 3260)
	first.SendTargets.Auth.Username = "alice"
	first.SendTargets.Timeouts.Login = 99
	require.NoError(t, db.AddDiscovery(ctx, first))

	second := sendTargets("10.0.0.1", 3260)
	second.SendTargets.Timeouts.Login = 0
	second.Startup = domain.StartupAutomatic
	require.NoError(t, db.AddDiscovery(ctx, second))

	got, err := db.ReadDiscovery(ctx, 0x0f0730)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.SendTargets.Auth.Username, "empty incoming string keeps stored value")
	assert.Equal(t, 99, got.SendTargets.Timeouts.Login, "zero incoming int keeps stored value")
	assert.Equal(t, domain.StartupAutomatic, got.Startup)
}

func TestAddDiscoveryUnsupportedType(t *testing.T) {
	db := newTestDB(t, "")

	err := db.AddDiscovery(context.Background(), domain.DefaultDiscovery(domain.DiscoveryTypeISNS))
	assert.ErrorIs(t, err, domain.ErrUnsupportedDiscoveryType)
}

func TestAddNodeKeys(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, "")

	standalone := node("iqn.foo", "10.1.1.1", 3260, 1)
	require.NoError(t, db.AddNode(ctx, nil, standalone))
	assert.Equal(t, uint32(0x0740b1), standalone.ID)

	discovered := node("iqn.foo", "10.1.1.1", 3260, 1)
	require.NoError(t, db.AddNode(ctx, sendTargets("10.1.1.2", 3260), discovered))
	assert.Equal(t, uint32(0x07ff91), discovered.ID)

	n, err := db.PrintNode(ctx, AllRecords)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t,
		"[0740b1] 10.1.1.1:3260,1 iqn.foo\n[07ff91] 10.1.1.1:3260,1 iqn.foo\n",
		db.out.String())

	db.out.Reset()
	n, err = db.PrintNodes(ctx, sendTargets("10.1.1.2", 3260))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "[07ff91] 10.1.1.1:3260,1 iqn.foo\n", db.out.String())

	db.out.Reset()
	n, err = db.PrintNodes(ctx, sendTargets("10.1.1.1", 3260))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a standalone node key does not match a discovery prefix")
}

func TestAddNodeValidates(t *testing.T) {
	db := newTestDB(t, "")

	rec := node("iqn.foo", "10.1.1.1", 3260, 1)
	rec.ActiveConns = 0
	assert.ErrorIs(t, db.AddNode(context.Background(), nil, rec), domain.ErrInvalidConnCount)
}

func TestAddNodeMerges(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, "")

	first := node("iqn.foo", "10.1.1.1", 3260, 1)
	first.Session.Auth.Username = "bob"
	require.NoError(t, db.AddNode(ctx, nil, first))

	second := node("", "10.1.1.1", 3260, 1)
	second.Conns[0].ISCSI.HeaderDigest = domain.DigestCRC32C
	require.NoError(t, db.AddNode(ctx, nil, second))

	got, err := db.ReadNode(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "iqn.foo", got.Name)
	assert.Equal(t, "bob", got.Session.Auth.Username)
	assert.Equal(t, domain.DigestCRC32C, got.Conns[0].ISCSI.HeaderDigest)
}

func TestReadNotFound(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, "")

	_, err := db.ReadDiscovery(ctx, 0x023456)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = db.ReadNode(ctx, 0x000001)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, db.WriteNode(ctx, 0x000001, domain.DefaultNode()), repository.ErrNotFound)
}

func TestWriteNode(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, "")

	drec := sendTargets("10.1.1.2", 3260)
	require.NoError(t, db.AddNode(ctx, drec, node("iqn.foo", "10.1.1.1", 3260, 1)))

	rec, err := db.ReadNode(ctx, 0x07ff91)
	require.NoError(t, err)

	rec.TPGT = 5
	rec.Session.ISCSI.MaxConnections = 0
	require.NoError(t, db.WriteNode(ctx, 0x07ff91, rec))
	assert.Equal(t, uint32(0x07ff91), rec.ID, "the record keeps its key and id")

	got, err := db.ReadNode(ctx, 0x07ff91)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TPGT)
	assert.Equal(t, 0, got.Session.ISCSI.MaxConnections, "write replaces, it does not merge")

	n, err := db.PrintNode(ctx, AllRecords)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "[07ff91] 10.1.1.1:3260,5 iqn.foo\n", db.out.String())
}

func TestPrintNodeByID(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, "")

	rec := node("iqn.foo", "10.1.1.1", 3260, 1)
	rec.Session.Auth.Password = "hunter2"
	require.NoError(t, db.AddNode(ctx, nil, rec))

	n, err := db.PrintNode(ctx, int(rec.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out := db.out.String()
	assert.True(t, strings.HasPrefix(out, "node.name = iqn.foo\n"))
	assert.Contains(t, out, "node.session.auth.password = ********\n")
	assert.NotContains(t, out, "hunter2")

	db.out.Reset()
	n, err = db.PrintNode(ctx, 0x000001)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, db.out.String())
}

func TestNewDiscovery(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, "")

	info := "DTN=iqn.foo\nTT=1\nTP=3260\nTA=10.1.1.1\n;\n!\n"
	drec, err := db.NewDiscovery(ctx, "10.1.1.2", 3260, domain.DiscoveryTypeSendTargets, info)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0fe750), drec.ID)

	n, err := db.PrintDiscovery(ctx, AllRecords)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	db.out.Reset()
	n, err = db.PrintNodes(ctx, drec)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "[07ff91] 10.1.1.1:3260,1 iqn.foo\n", db.out.String())

	got, err := db.ReadNode(ctx, 0x07ff91)
	require.NoError(t, err)
	assert.Equal(t, "iqn.foo", got.Name)
	assert.Equal(t, domain.DefaultNode().Session.ISCSI, got.Session.ISCSI)
}

func TestNewDiscoveryMalformed(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, "")

	info := "DTN=iqn.a\nTA=10.1.1.1\nTP=3260\n;\nDTN=iqn.b\nBOGUS\n;\n!\n"
	drec, err := db.NewDiscovery(ctx, "10.1.1.2", 3260, domain.DiscoveryTypeSendTargets, info)
	assert.ErrorIs(t, err, loader.ErrSyntax)
	assert.Nil(t, drec)

	n, err := db.PrintNodes(ctx, sendTargets("10.1.1.2", 3260))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "entries before the bad line stay committed")
}

func TestNewDiscoveryUsesConfigDefaults(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, "node.session.iscsi.FirstBurstLength = 65536\ndiscovery.sendtargets.timeo.login_timeout = 7\n")

	drec, err := db.NewDiscovery(ctx, "10.1.1.2", 3260, domain.DiscoveryTypeSendTargets,
		"DTN=iqn.foo\nTT=1\nTP=3260\nTA=10.1.1.1\n;\n")
	require.NoError(t, err)
	assert.Equal(t, 7, drec.SendTargets.Timeouts.Login)

	got, err := db.ReadNode(ctx, 0x07ff91)
	require.NoError(t, err)
	assert.Equal(t, 65536, got.Session.ISCSI.FirstBurstLength)
}

func TestNewDiscoveryUnimplementedTypes(t *testing.T) {
	db := newTestDB(t, "")

	for _, typ := range []domain.DiscoveryType{domain.DiscoveryTypeSLP, domain.DiscoveryTypeISNS} {
		_, err := db.NewDiscovery(context.Background(), "10.1.1.2", 3260, typ, "DTN=iqn.foo\n;\n")
		assert.ErrorIs(t, err, ErrUnimplementedDiscoveryType, typ.String())
	}
}

func TestSyncDefaults(t *testing.T) {
	db := newTestDB(t, "discovery.slp.poll_interval = 30\n")
	assert.Equal(t, 30, db.SLPDefaults().PollInterval)
	assert.Equal(t, 15, db.SendTargetsDefaults().Timeouts.Login)

	events := make(chan Event, 1)
	db.Events().Subscribe(events)

	require.NoError(t, os.WriteFile(db.conf, []byte("discovery.sendtargets.timeo.login_timeout = 3\n"), 0644))
	require.NoError(t, db.SyncDefaults())

	assert.Equal(t, 3, db.SendTargetsDefaults().Timeouts.Login)
	assert.Equal(t, 300, db.SLPDefaults().PollInterval)
	assert.Equal(t, EventDefaultsReloaded, (<-events).Type)
}

func TestDefaultsAreCopies(t *testing.T) {
	db := newTestDB(t, "discovery.slp.scopes = a,b\n")

	slp := db.SLPDefaults()
	slp.Scopes[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, db.SLPDefaults().Scopes)

	n := db.NodeDefaults()
	n.Name = "changed"
	assert.Empty(t, db.NodeDefaults().Name)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, "")

	_, err := db.NewDiscovery(ctx, "10.1.1.2", 3260, domain.DiscoveryTypeSendTargets,
		"DTN=iqn.foo\nTT=1\nTP=3260\nTA=10.1.1.1\n;\n!\n")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, db.Export(ctx, codec.NewTextExporter(), &buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# discovery [0fe750]\n"))
	assert.Contains(t, out, "\n# node [07ff91]\nnode.name = iqn.foo\n")

	buf.Reset()
	require.NoError(t, db.Export(ctx, codec.NewYAMLExporter(), &buf))
	assert.Contains(t, buf.String(), "id: 07ff91")
}
