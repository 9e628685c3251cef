// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/openchami/linbo-dc/internal/dhcpgen"
	"github.com/openchami/linbo-dc/internal/fsutil"
	"github.com/openchami/linbo-dc/internal/grubgen"
	"github.com/openchami/linbo-dc/internal/model"
	"github.com/openchami/linbo-dc/internal/startconf"
	"github.com/openchami/linbo-dc/internal/store"
	"github.com/openchami/linbo-dc/internal/upstream"
)

// FlagTTL bounds how long the single-flight running flag survives a
// crashed sync.
const FlagTTL = 5 * time.Minute

// Deps bundles the collaborators syncOnce needs. Fields are filled in by
// the caller (cmd/server).
type Deps struct {
	Upstream    upstream.Authority
	Store       *store.Store
	GrubGen     *grubgen.Generator
	LinboDir    string
	LocalServer string // server IP substituted into "Server ="/"server=" lines
	NetSettings dhcpgen.NetworkSettings
	DHCPOutPath string
	Logger      *log.Logger
}

// Result reports what one sync pass did, for logging/metrics.
type Result struct {
	Cursor         string
	HostsSynced    int
	ConfigsSynced  int
	ConfigsRemoved int
	DHCPRewritten  bool
	NoOp           bool
}

// Engine runs syncOnce on demand or on a ticker.
type Engine struct {
	deps Deps
}

// New constructs an Engine.
func New(deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = log.New(log.Writer(), "sync: ", log.LstdFlags)
	}
	return &Engine{deps: deps}
}

// Run performs one incremental sync pass. It is
// single-flight across the whole process (and, via the store flag, across
// any other process sharing the same Redis instance): a concurrent call
// returns store.ErrAlreadyRunning immediately rather than blocking.
//
// The running flag is always cleared on return, and the cursor is only
// advanced once every step it covers has succeeded.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	d := e.deps

	if err := d.Store.AcquireFlag(ctx, store.SyncRunningKey(), FlagTTL); err != nil {
		if errors.Is(err, store.ErrAlreadyRunning) {
			return Result{NoOp: true}, err
		}
		return Result{}, fmt.Errorf("acquiring sync flag: %w", err)
	}
	defer func() {
		if relErr := d.Store.ReleaseFlag(context.Background(), store.SyncRunningKey()); relErr != nil {
			d.Logger.Printf("releasing sync flag: %v", relErr)
		}
	}()

	result, err := e.syncOnce(ctx)
	if err != nil {
		_ = d.Store.SetString(context.Background(), store.SyncLastErrorKey(), err.Error())
		return result, err
	}
	_ = d.Store.Delete(context.Background(), store.SyncLastErrorKey())
	_ = d.Store.SetString(context.Background(), store.SyncLastSyncAtKey(), strconv.FormatInt(time.Now().Unix(), 10))
	return result, nil
}

// syncOnce runs one delta application end to end: read the
// cursor, pull a delta, batch-fetch changed bodies, deploy start.conf +
// symlinks, remove deleted configs, evict deleted hosts from the cache,
// regenerate GRUB if anything host/config-shaped changed, refresh the
// DHCP export if flagged, and finally commit the new cursor.
func (e *Engine) syncOnce(ctx context.Context) (Result, error) {
	d := e.deps
	result := Result{}

	cursor, _, err := d.Store.GetString(ctx, store.SyncCursorKey())
	if err != nil {
		return result, fmt.Errorf("reading cursor: %w", err)
	}

	delta, err := d.Upstream.GetChanges(ctx, cursor)
	if err != nil {
		return result, fmt.Errorf("fetching changes: %w", err)
	}

	if len(delta.HostsChanged) == 0 && len(delta.StartConfsChanged) == 0 &&
		len(delta.ConfigsChanged) == 0 && len(delta.DeletedHosts) == 0 &&
		len(delta.DeletedStartConfs) == 0 && !delta.DHCPChanged {
		result.NoOp = true
		result.Cursor = cursor
		return result, nil
	}

	var hosts []model.Host
	if len(delta.HostsChanged) > 0 {
		hosts, err = d.Upstream.BatchGetHosts(ctx, delta.HostsChanged)
		if err != nil {
			return result, fmt.Errorf("batch fetching hosts: %w", err)
		}
		if err := e.applyHosts(ctx, hosts); err != nil {
			return result, err
		}
		result.HostsSynced = len(hosts)
	}

	var configs []model.BootConfig
	if len(delta.ConfigsChanged) > 0 {
		configs, err = d.Upstream.BatchGetConfigs(ctx, delta.ConfigsChanged)
		if err != nil {
			return result, fmt.Errorf("batch fetching configs: %w", err)
		}
	}

	if len(delta.StartConfsChanged) > 0 {
		bodies, err := d.Upstream.BatchGetStartConfs(ctx, delta.StartConfsChanged)
		if err != nil {
			return result, fmt.Errorf("batch fetching start.conf bodies: %w", err)
		}
		if err := e.deployStartConfs(ctx, configs, bodies); err != nil {
			return result, err
		}
		result.ConfigsSynced = len(bodies)
	}

	for _, name := range delta.DeletedStartConfs {
		if err := startconf.RemoveConfig(d.LinboDir, name); err != nil {
			return result, fmt.Errorf("removing config %s: %w", name, err)
		}
		result.ConfigsRemoved++
	}

	for _, mac := range delta.DeletedHosts {
		if err := e.evictHost(ctx, mac); err != nil {
			return result, err
		}
	}

	if d.GrubGen != nil && (len(hosts) > 0 || len(configs) > 0 || len(delta.DeletedHosts) > 0 || len(delta.DeletedStartConfs) > 0) {
		liveHosts, liveConfigs, err := e.currentSnapshot(ctx)
		if err != nil {
			return result, fmt.Errorf("loading snapshot for grub regen: %w", err)
		}
		if _, err := d.GrubGen.RegenerateAll(liveConfigs, liveHosts); err != nil {
			return result, fmt.Errorf("regenerating grub tree: %w", err)
		}
	}

	if delta.DHCPChanged {
		if err := e.refreshDHCPExport(ctx); err != nil {
			return result, err
		}
		result.DHCPRewritten = true
	}

	if err := d.Store.SetString(ctx, store.SyncCursorKey(), delta.NextCursor); err != nil {
		return result, fmt.Errorf("committing cursor: %w", err)
	}
	result.Cursor = delta.NextCursor
	return result, nil
}

// applyHosts caches each host (keyed by id, hostname, and MAC for the
// three lookup paths) and adds it to the host index.
func (e *Engine) applyHosts(ctx context.Context, hosts []model.Host) error {
	for _, h := range hosts {
		pxeFlag := "0"
		if h.PXEFlag() {
			pxeFlag = "1"
		}
		fields := map[string]any{
			"id":             h.ID,
			"hostname":       h.Hostname,
			"macAddress":     h.MACAddress,
			"ipAddress":      h.IPAddress,
			"configId":       h.ConfigID,
			"roomId":         h.RoomID,
			"status":         string(h.Status),
			"provisionStatus": string(h.ProvisionStatus),
			"pxeFlag":        pxeFlag,
		}
		if err := e.deps.Store.HSet(ctx, store.HostKey(h.ID), fields); err != nil {
			return fmt.Errorf("caching host %s: %w", h.Hostname, err)
		}
		if err := e.deps.Store.SetString(ctx, store.HostHostnameKey(h.Hostname), h.ID); err != nil {
			return fmt.Errorf("indexing host by hostname %s: %w", h.Hostname, err)
		}
		if err := e.deps.Store.SetString(ctx, store.HostMACKey(h.MACAddress), h.ID); err != nil {
			return fmt.Errorf("indexing host by mac %s: %w", h.MACAddress, err)
		}
		if err := e.deps.Store.SAdd(ctx, store.HostIndexKey(), h.ID); err != nil {
			return fmt.Errorf("adding host %s to index: %w", h.Hostname, err)
		}
	}
	return nil
}

// evictHost removes a deleted host's cache entries and its start.conf
// symlinks.
func (e *Engine) evictHost(ctx context.Context, mac string) error {
	id, ok, err := e.deps.Store.GetString(ctx, store.HostMACKey(mac))
	if err != nil {
		return fmt.Errorf("looking up host by mac %s: %w", mac, err)
	}
	if !ok {
		return nil
	}
	fields, err := e.deps.Store.HGetAll(ctx, store.HostKey(id))
	if err != nil {
		return fmt.Errorf("reading cached host %s: %w", id, err)
	}
	if ip := fields["ipAddress"]; ip != "" {
		link := filepath.Join(e.deps.LinboDir, "start.conf-"+ip)
		if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing ip symlink for %s: %w", id, err)
		}
	}
	macLink := filepath.Join(e.deps.LinboDir, "start.conf-"+strings.ToLower(mac))
	if err := os.Remove(macLink); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing mac symlink for %s: %w", id, err)
	}
	if err := e.deps.Store.Delete(ctx, store.HostKey(id), store.HostMACKey(mac)); err != nil {
		return fmt.Errorf("evicting host %s: %w", id, err)
	}
	if hostname := fields["hostname"]; hostname != "" {
		if err := e.deps.Store.Delete(ctx, store.HostHostnameKey(hostname)); err != nil {
			return fmt.Errorf("evicting host index entry for %s: %w", hostname, err)
		}
	}
	return e.deps.Store.SRem(ctx, store.HostIndexKey(), id)
}

// deployStartConfs rewrites every "Server ="/"server=" token in each
// upstream body to the local server IP (case-preserving), writes the
// body with its md5 sidecar, and refreshes the IP- and
// MAC-based symlinks for every host that references the config.
func (e *Engine) deployStartConfs(ctx context.Context, configs []model.BootConfig, bodies map[string]string) error {
	idByName := make(map[string]string, len(configs))
	for _, c := range configs {
		idByName[c.Name] = c.ID
	}

	hosts, err := e.cachedHosts(ctx)
	if err != nil {
		return err
	}

	for name, body := range bodies {
		rewritten := rewriteServerTokens(body, e.deps.LocalServer)
		if err := startconf.DeployRaw(e.deps.LinboDir, name, []byte(rewritten)); err != nil {
			return fmt.Errorf("deploying start.conf for %s: %w", name, err)
		}
		target := "start.conf." + name
		for _, h := range hosts {
			if h.ConfigID != name && (idByName[name] == "" || h.ConfigID != idByName[name]) {
				continue
			}
			if h.IPAddress != "" {
				link := filepath.Join(e.deps.LinboDir, "start.conf-"+h.IPAddress)
				if err := fsutil.ReplaceSymlink(link, target); err != nil {
					return fmt.Errorf("linking %s by ip: %w", h.Hostname, err)
				}
			}
			if h.MACAddress != "" {
				link := filepath.Join(e.deps.LinboDir, "start.conf-"+strings.ToLower(h.MACAddress))
				if err := fsutil.ReplaceSymlink(link, target); err != nil {
					return fmt.Errorf("linking %s by mac: %w", h.Hostname, err)
				}
			}
		}
	}
	return nil
}

// cachedHosts reassembles the live host set from the KV cache.
func (e *Engine) cachedHosts(ctx context.Context) ([]model.Host, error) {
	ids, err := e.deps.Store.SMembers(ctx, store.HostIndexKey())
	if err != nil {
		return nil, fmt.Errorf("listing host index: %w", err)
	}
	hosts := make([]model.Host, 0, len(ids))
	for _, id := range ids {
		fields, err := e.deps.Store.HGetAll(ctx, store.HostKey(id))
		if err != nil || len(fields) == 0 {
			continue
		}
		h := model.Host{
			ID:         fields["id"],
			Hostname:   fields["hostname"],
			MACAddress: fields["macAddress"],
			IPAddress:  fields["ipAddress"],
			ConfigID:   fields["configId"],
			RoomID:     fields["roomId"],
			Status:     model.HostStatus(fields["status"]),
		}
		// A reconstructed host with nil metadata would report pxeFlag=1
		// by default; restore the cached bit so pxeFlag=0 hosts survive
		// the round trip.
		if v := fields["pxeFlag"]; v != "" {
			h.SetPXEFlag(v == "1")
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

// currentSnapshot reassembles the live host/config set from the KV cache
// for a full GRUB regeneration pass.
func (e *Engine) currentSnapshot(ctx context.Context) ([]model.Host, []model.BootConfig, error) {
	hosts, err := e.cachedHosts(ctx)
	if err != nil {
		return nil, nil, err
	}
	configIDs := map[string]bool{}
	for _, h := range hosts {
		if h.ConfigID != "" {
			configIDs[h.ConfigID] = true
		}
	}

	names := make([]string, 0, len(configIDs))
	for id := range configIDs {
		names = append(names, id)
	}
	var configs []model.BootConfig
	if len(names) > 0 {
		configs, err = e.deps.Upstream.BatchGetConfigs(ctx, names)
		if err != nil {
			return nil, nil, fmt.Errorf("refetching configs for snapshot: %w", err)
		}
	}
	return hosts, configs, nil
}

// refreshDHCPExport fetches and, if its ETag changed, rewrites the
// upstream-authoritative DHCP export to disk.
func (e *Engine) refreshDHCPExport(ctx context.Context) error {
	export, err := e.deps.Upstream.GetDHCPExport(ctx)
	if err != nil {
		return fmt.Errorf("fetching dhcp export: %w", err)
	}
	if export.Status != 200 {
		return fmt.Errorf("dhcp export returned status %d", export.Status)
	}
	prevEtag, _, err := e.deps.Store.GetString(ctx, store.DHCPEtagKey())
	if err != nil {
		return fmt.Errorf("reading dhcp etag: %w", err)
	}
	if prevEtag == export.ETag && prevEtag != "" {
		return nil
	}
	if e.deps.DHCPOutPath != "" {
		if err := fsutil.WriteFileAtomic(e.deps.DHCPOutPath, export.Content, 0o644); err != nil {
			return fmt.Errorf("writing dhcp export: %w", err)
		}
	}
	if err := e.deps.Store.SetString(ctx, store.DHCPEtagKey(), export.ETag); err != nil {
		return fmt.Errorf("storing dhcp etag: %w", err)
	}
	return nil
}

// rewriteServerTokens replaces the value of every "Server ="/"server="
// line with serverIP, keeping everything up to and including "=" as it
// was (key case, indentation, spacing before "="); any whitespace after
// "=" becomes a single space.
func rewriteServerTokens(body, serverIP string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToLower(trimmed), "server") {
			continue
		}
		rest := strings.TrimLeft(trimmed[len("server"):], " \t")
		if !strings.HasPrefix(rest, "=") {
			continue
		}
		eq := strings.Index(line, "=")
		after := line[eq+1:]
		if strings.HasPrefix(after, " ") || strings.HasPrefix(after, "\t") {
			lines[i] = line[:eq+1] + " " + serverIP
		} else {
			lines[i] = line[:eq+1] + serverIP
		}
	}
	return strings.Join(lines, "\n")
}
