// Package meta resolves the directory-backed metadata hierarchy: a root
// document describing tags, group directories with group documents, and
// device directories with channel declarations.
package meta

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// InfoFilename is the name of the metadata document inside the data root
// and every group and device directory.
const InfoFilename = "info.yaml"

// Resolver reads metadata from a directory tree. Documents are re-read on
// every call: the tree may be edited out-of-band (new devices are added by
// creating directories) and responses must always reflect its current state.
// Documents are small, so the re-read cost is accepted.
type Resolver struct {
	root string
}

// NewResolver returns a resolver rooted at the given data directory.
func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// Root returns the data directory this resolver reads from.
func (r *Resolver) Root() string { return r.root }

// Tags returns the tags section of the root metadata document. An absent or
// unparseable root document is reported as NotFoundError.
func (r *Resolver) Tags() (interface{}, error) {
	doc, err := r.loadDocument(r.root, "root metadata document")
	if err != nil {
		return nil, err
	}

	tags, ok := doc["tags"]
	if !ok {
		return nil, &NotFoundError{Resource: "tags section of root metadata document"}
	}
	return tags, nil
}

// Groups enumerates group directories under the data root. Non-directory
// entries are ignored.
func (r *Resolver) Groups() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("reading data root: %w", err)
	}

	var groups []string
	for _, entry := range entries {
		if entry.IsDir() {
			groups = append(groups, entry.Name())
		}
	}
	return groups, nil
}

// GroupConfig returns the parsed group metadata document. A missing group
// directory or document is reported as NotFoundError.
func (r *Resolver) GroupConfig(group string) (map[string]interface{}, error) {
	dir := filepath.Join(r.root, group)
	if err := requireDir(dir, fmt.Sprintf("group %q", group)); err != nil {
		return nil, err
	}
	return r.loadDocument(dir, fmt.Sprintf("group %q metadata document", group))
}

// Devices enumerates device directories within a group.
func (r *Resolver) Devices(group string) ([]string, error) {
	dir := filepath.Join(r.root, group)
	if err := requireDir(dir, fmt.Sprintf("group %q", group)); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading group %q: %w", group, err)
	}

	var devices []string
	for _, entry := range entries {
		if entry.IsDir() {
			devices = append(devices, entry.Name())
		}
	}
	return devices, nil
}

// DeviceConfig returns the parsed device metadata document.
func (r *Resolver) DeviceConfig(group, device string) (map[string]interface{}, error) {
	dir := filepath.Join(r.root, group, device)
	if err := requireDir(dir, fmt.Sprintf("device %s/%s", group, device)); err != nil {
		return nil, err
	}
	return r.loadDocument(dir, fmt.Sprintf("device %s/%s metadata document", group, device))
}

// DeviceExists reports whether the device directory exists; a missing
// directory is a NotFoundError. Used by the data path, which needs existence
// but not the full document.
func (r *Resolver) DeviceExists(group, device string) error {
	return requireDir(filepath.Join(r.root, group, device), fmt.Sprintf("device %s/%s", group, device))
}

// Channels returns the channel declarations of a device, in declaration
// order. Entries that are not mappings are skipped.
func (r *Resolver) Channels(group, device string) ([]map[string]interface{}, error) {
	doc, err := r.DeviceConfig(group, device)
	if err != nil {
		return nil, err
	}

	raw, _ := doc["channels"].([]interface{})
	channels := make([]map[string]interface{}, 0, len(raw))
	for _, entry := range raw {
		if channel, ok := entry.(map[string]interface{}); ok {
			channels = append(channels, channel)
		}
	}
	return channels, nil
}

// ChannelIndex resolves a channel slug to its position in the device's value
// vectors: the first declared channel with a matching slug wins.
func (r *Resolver) ChannelIndex(group, device, slug string) (int, error) {
	channels, err := r.Channels(group, device)
	if err != nil {
		return 0, err
	}

	for i, channel := range channels {
		if s, ok := channel["slug"].(string); ok && s == slug {
			return i, nil
		}
	}
	return 0, &ChannelNotFoundError{Group: group, Device: device, Channel: slug}
}

// loadDocument parses the info document inside dir. Absent or malformed
// documents are reported as NotFoundError so the tree behaves as if the
// entity were not there at all.
func (r *Resolver) loadDocument(dir, what string) (map[string]interface{}, error) {
	data, err := os.ReadFile(filepath.Join(dir, InfoFilename))
	if err != nil {
		return nil, &NotFoundError{Resource: what}
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &NotFoundError{Resource: what}
	}
	return doc, nil
}

func requireDir(dir, what string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return &NotFoundError{Resource: what}
	}
	return nil
}
