package meta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTree lays out a minimal metadata tree: a root document with tags, one
// group ("loch") with one device ("boathouse") declaring two channels.
func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeDoc(t, root, `
tags:
  indoor:
    label: Indoor
  outdoor:
    label: Outdoor
`)

	groupDir := filepath.Join(root, "loch")
	require.NoError(t, os.MkdirAll(groupDir, 0o755))
	writeDoc(t, groupDir, `
slug: loch
label: Loch sensors
`)

	deviceDir := filepath.Join(groupDir, "boathouse")
	require.NoError(t, os.MkdirAll(deviceDir, 0o755))
	writeDoc(t, deviceDir, `
slug: boathouse
channels:
  - slug: temperature
    units: degC
  - slug: humidity
    units: "%"
`)

	return root
}

func writeDoc(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, InfoFilename), []byte(content), 0o644))
}

func TestTags(t *testing.T) {
	r := NewResolver(writeTree(t))

	tags, err := r.Tags()
	require.NoError(t, err)

	m, ok := tags.(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, m, "indoor")
	require.Contains(t, m, "outdoor")
}

func TestTagsMissingRootDocument(t *testing.T) {
	r := NewResolver(t.TempDir())

	_, err := r.Tags()
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestTagsMalformedRootDocument(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, InfoFilename), []byte("tags: [unclosed"), 0o644))

	_, err := NewResolver(root).Tags()
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestGroups(t *testing.T) {
	root := writeTree(t)
	// A stray file at the root must not be listed as a group.
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	groups, err := NewResolver(root).Groups()
	require.NoError(t, err)
	require.Equal(t, []string{"loch"}, groups)
}

func TestGroupConfig(t *testing.T) {
	r := NewResolver(writeTree(t))

	cfg, err := r.GroupConfig("loch")
	require.NoError(t, err)
	require.Equal(t, "loch", cfg["slug"])
	require.Equal(t, "Loch sensors", cfg["label"])
}

func TestGroupConfigMissingGroup(t *testing.T) {
	r := NewResolver(writeTree(t))

	_, err := r.GroupConfig("glen")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestGroupConfigMissingDocument(t *testing.T) {
	root := writeTree(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bare"), 0o755))

	_, err := NewResolver(root).GroupConfig("bare")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestDevices(t *testing.T) {
	r := NewResolver(writeTree(t))

	devices, err := r.Devices("loch")
	require.NoError(t, err)
	require.Equal(t, []string{"boathouse"}, devices)

	_, err = r.Devices("glen")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestDeviceConfig(t *testing.T) {
	r := NewResolver(writeTree(t))

	cfg, err := r.DeviceConfig("loch", "boathouse")
	require.NoError(t, err)
	require.Equal(t, "boathouse", cfg["slug"])

	_, err = r.DeviceConfig("loch", "jetty")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestChannels(t *testing.T) {
	r := NewResolver(writeTree(t))

	channels, err := r.Channels("loch", "boathouse")
	require.NoError(t, err)
	require.Len(t, channels, 2)
	require.Equal(t, "temperature", channels[0]["slug"])
	require.Equal(t, "humidity", channels[1]["slug"])
}

func TestChannelIndex(t *testing.T) {
	r := NewResolver(writeTree(t))

	idx, err := r.ChannelIndex("loch", "boathouse", "humidity")
	require.NoError(t, err)
	require.Equal(t, 1, idx)

	_, err = r.ChannelIndex("loch", "boathouse", "pressure")
	var cnf *ChannelNotFoundError
	require.ErrorAs(t, err, &cnf)
	require.Equal(t, "pressure", cnf.Channel)
}

func TestDeviceExists(t *testing.T) {
	r := NewResolver(writeTree(t))

	require.NoError(t, r.DeviceExists("loch", "boathouse"))

	err := r.DeviceExists("loch", "jetty")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}
