package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skillshub/internal/catalog"
	"skillshub/internal/eventbus"
	"skillshub/internal/faults"
	"skillshub/internal/hub"
	"skillshub/internal/remote"
	"skillshub/internal/security"
	"skillshub/internal/syncer"
)

// hostTargetKey is the target row identifier for a skill mirrored onto
// a remote host by a host-wide sync.
func hostTargetKey(hostID string) string { return "host:" + hostID }

func (a *App) sshTimeouts() remote.Timeouts {
	t := remote.DefaultTimeouts()
	if a.cfg.SSH.ConnectTimeoutSecs > 0 {
		t.Connect = time.Duration(a.cfg.SSH.ConnectTimeoutSecs) * time.Second
	}
	if a.cfg.SSH.SessionTimeoutSecs > 0 {
		t.Session = time.Duration(a.cfg.SSH.SessionTimeoutSecs) * time.Second
	}
	return t
}

// passphrase resolves a stored SSH key passphrase; an absent entry is
// not an error, the key may simply be unencrypted.
func (a *App) passphrase(keyPath string) (string, error) {
	val, err := a.passes.Get(keyPath)
	if errors.Is(err, security.ErrNotFound) {
		return "", nil
	}
	return val, err
}

func hostParams(h *catalog.RemoteHost) remote.Params {
	return remote.Params{
		Host:       h.Host,
		Port:       h.Port,
		Username:   h.Username,
		AuthMethod: h.AuthMethod,
		KeyPath:    h.KeyPath,
	}
}

// dialHost opens a connection to a saved host. Callers must hold the
// host's lock while using it and close it when done.
func (a *App) dialHost(hostID string) (*remote.Client, *catalog.RemoteHost, error) {
	host, err := a.store.GetHost(a.ctx, hostID)
	if err != nil {
		return nil, nil, err
	}
	client, err := remote.Dial(hostParams(host), a.sshTimeouts(), a.passphrase)
	if err != nil {
		return nil, nil, err
	}
	return client, host, nil
}

func (a *App) setHostStatus(hostID, status string) {
	if err := a.store.SetHostStatus(a.ctx, hostID, status); err != nil {
		log := fmt.Sprintf("host %s status update failed: %v", hostID, err)
		a.bus.Publish(eventbus.TopicError, log)
		return
	}
	a.bus.Publish(eventbus.TopicHostStatus, map[string]string{"host_id": hostID, "status": status})
}

// --- Remote hosts ---

// GetRemoteHosts returns every saved remote host.
func (a *App) GetRemoteHosts() ([]catalog.RemoteHost, error) {
	hosts, err := a.store.ListHosts(a.ctx)
	if err != nil {
		return nil, a.fail(err)
	}
	return hosts, nil
}

// AddRemoteHost saves a new remote host entry.
func (a *App) AddRemoteHost(label, host string, port int, username, authMethod, keyPath string) (*catalog.RemoteHost, error) {
	h := &catalog.RemoteHost{
		Label:      label,
		Host:       host,
		Port:       port,
		Username:   username,
		AuthMethod: authMethod,
		KeyPath:    keyPath,
	}
	if err := a.store.CreateHost(a.ctx, h); err != nil {
		return nil, a.fail(err)
	}
	return h, nil
}

// UpdateRemoteHost rewrites a saved host entry and drops its cached
// tool detection, the edit may point at a different machine.
func (a *App) UpdateRemoteHost(id, label, host string, port int, username, authMethod, keyPath string) error {
	h := &catalog.RemoteHost{
		ID:         id,
		Label:      label,
		Host:       host,
		Port:       port,
		Username:   username,
		AuthMethod: authMethod,
		KeyPath:    keyPath,
	}
	if err := a.store.UpdateHost(a.ctx, h); err != nil {
		return a.fail(err)
	}
	a.detectCache.Invalidate(id)
	return nil
}

// DeleteRemoteHost removes a saved host; its custom targets cascade.
func (a *App) DeleteRemoteHost(id string) error {
	if err := a.store.DeleteHost(a.ctx, id); err != nil {
		return a.fail(err)
	}
	a.detectCache.Invalidate(id)
	return nil
}

// TestRemoteConnection dials a saved host and runs a probe command,
// recording the outcome on the host row.
func (a *App) TestRemoteConnection(hostID string) (string, error) {
	host, err := a.store.GetHost(a.ctx, hostID)
	if err != nil {
		return "", a.fail(err)
	}

	out, err := remote.TestConnection(hostParams(host), a.sshTimeouts(), a.passphrase)
	if err != nil {
		a.setHostStatus(hostID, catalog.HostError)
		return "", a.fail(err)
	}
	a.setHostStatus(hostID, catalog.HostOK)
	return out, nil
}

// GetRemoteToolStatus reports which tools exist on a remote host, from
// the session cache unless force re-probes.
func (a *App) GetRemoteToolStatus(hostID string, force bool) ([]remote.ToolStatus, error) {
	lock := a.hostLocks.For(hostID)
	lock.Lock()
	defer lock.Unlock()

	if !force {
		// Serve the cache without dialing at all.
		if statuses, ok := a.detectCache.Cached(hostID); ok {
			return statuses, nil
		}
	}

	client, _, err := a.dialHost(hostID)
	if err != nil {
		return nil, a.fail(err)
	}
	defer client.Close()

	statuses, err := remote.DetectTools(client, a.registry, a.detectCache, hostID, true)
	if err != nil {
		return nil, a.fail(err)
	}
	return statuses, nil
}

// --- Remote sync ---

// SyncAllSkillsToRemote pushes every managed skill to a host and links
// each into the selected tools.
func (a *App) SyncAllSkillsToRemote(hostID string, toolKeys []string) (*remote.Report, error) {
	skills, err := a.store.ListSkills(a.ctx)
	if err != nil {
		return nil, a.fail(err)
	}
	return a.runRemoteSync(hostID, skills, toolKeys)
}

// SyncSelectedSkillsToRemote pushes a chosen subset of skills to a
// host.
func (a *App) SyncSelectedSkillsToRemote(hostID string, skillIDs, toolKeys []string) (*remote.Report, error) {
	var skills []catalog.Skill
	for _, id := range skillIDs {
		sk, err := a.store.GetSkill(a.ctx, id)
		if err != nil {
			return nil, a.fail(err)
		}
		skills = append(skills, *sk)
	}
	return a.runRemoteSync(hostID, skills, toolKeys)
}

// runRemoteSync runs one host sync batch on the worker pool, holding
// the host's lock so concurrent syncs to the same host serialize while
// distinct hosts proceed in parallel. The host's status moves
// idle -> syncing -> ok/error around the batch.
func (a *App) runRemoteSync(hostID string, skills []catalog.Skill, toolKeys []string) (*remote.Report, error) {
	if len(skills) == 0 {
		return &remote.Report{}, nil
	}

	uploads := make([]remote.SkillUpload, 0, len(skills))
	byName := make(map[string]string, len(skills))
	for _, sk := range skills {
		uploads = append(uploads, remote.SkillUpload{Name: sk.Name, LocalPath: sk.CentralPath})
		byName[sk.Name] = sk.ID
	}

	var report *remote.Report
	task := a.pool.Go(a.ctx, func(ctx context.Context) error {
		lock := a.hostLocks.For(hostID)
		lock.Lock()
		defer lock.Unlock()

		a.setHostStatus(hostID, catalog.HostSyncing)
		a.bus.Publish(eventbus.TopicSyncStarted, map[string]any{"host_id": hostID, "skills": len(uploads)})

		client, _, err := a.dialHost(hostID)
		if err != nil {
			a.setHostStatus(hostID, catalog.HostError)
			return err
		}
		defer client.Close()

		rep, err := remote.SyncSkills(ctx, client, uploads, toolKeys, a.registry)
		report = rep

		for _, name := range rep.Synced {
			skillID := byName[name]
			t := &catalog.SkillTarget{
				SkillID:   skillID,
				TargetKey: hostTargetKey(hostID),
				Mode:      syncer.ModeRemoteCopy,
				DestPath:  "~/.skillshub/" + name,
				Status:    catalog.TargetSynced,
			}
			if upErr := a.store.UpsertTarget(a.ctx, t); upErr != nil {
				rep.Errors = append(rep.Errors, remote.PairError{Skill: name, Err: upErr.Error()})
			}
			a.store.TouchSkillSync(a.ctx, skillID)
		}

		if err != nil {
			a.setHostStatus(hostID, catalog.HostError)
			return err
		}
		a.setHostStatus(hostID, catalog.HostOK)
		return nil
	})

	a.syncMu.Lock()
	a.hostSyncs[hostID] = task
	a.syncMu.Unlock()

	err := task.Wait()

	a.syncMu.Lock()
	delete(a.hostSyncs, hostID)
	a.syncMu.Unlock()

	a.bus.Publish(eventbus.TopicSyncFinished, map[string]any{"host_id": hostID})

	// A partial failure still hands the report back; its per-pair
	// errors are the useful part.
	if err != nil && !faults.IsKind(err, faults.PartialFailure) {
		return report, a.fail(err)
	}
	return report, nil
}

// CancelRemoteSync requests cancellation of the running sync toward a
// host. The sync stops at its next cell boundary.
func (a *App) CancelRemoteSync(hostID string) {
	a.syncMu.Lock()
	task := a.hostSyncs[hostID]
	a.syncMu.Unlock()
	if task != nil {
		task.Cancel()
	}
}

// ListRemoteSkills lists the skills present in a host's staging root.
func (a *App) ListRemoteSkills(hostID string) ([]string, error) {
	lock := a.hostLocks.For(hostID)
	lock.Lock()
	defer lock.Unlock()

	client, _, err := a.dialHost(hostID)
	if err != nil {
		return nil, a.fail(err)
	}
	defer client.Close()

	names, err := remote.ListSkills(client)
	if err != nil {
		return nil, a.fail(err)
	}
	return names, nil
}

// BrowseRemoteDirectory lists one level of a remote directory for the
// custom-target picker.
func (a *App) BrowseRemoteDirectory(hostID, dir string) ([]remote.DirEntry, error) {
	lock := a.hostLocks.For(hostID)
	lock.Lock()
	defer lock.Unlock()

	client, _, err := a.dialHost(hostID)
	if err != nil {
		return nil, a.fail(err)
	}
	defer client.Close()

	entries, err := remote.BrowseDirectory(client, dir)
	if err != nil {
		return nil, a.fail(err)
	}
	return entries, nil
}

// pushSkillToHostDir uploads one skill into an explicit directory on a
// remote host, the path remote custom targets take.
func (a *App) pushSkillToHostDir(hostID string, skill *catalog.Skill, destDir string) (string, error) {
	lock := a.hostLocks.For(hostID)
	lock.Lock()
	defer lock.Unlock()

	client, _, err := a.dialHost(hostID)
	if err != nil {
		return "", err
	}
	defer client.Close()

	return remote.PushToDir(client, remote.SkillUpload{Name: skill.Name, LocalPath: skill.CentralPath}, destDir)
}

// --- SSH key passphrases ---

// SetSSHKeyPassphrase stores the passphrase for an encrypted SSH key
// in the OS keyring.
func (a *App) SetSSHKeyPassphrase(keyPath, passphrase string) error {
	return a.fail(a.passes.Set(keyPath, passphrase))
}

// ClearSSHKeyPassphrase removes a stored SSH key passphrase.
func (a *App) ClearSSHKeyPassphrase(keyPath string) error {
	return a.fail(a.passes.Delete(keyPath))
}

// --- Hub catalog ---

// SearchHubSkills queries the hub catalog; the limit is clamped to
// 1..50.
func (a *App) SearchHubSkills(query string, limit int) ([]hub.Summary, error) {
	results, err := a.hubClient.Search(a.ctx, query, limit)
	if err != nil {
		return nil, a.fail(err)
	}
	return results, nil
}

// GetHubSkill fetches the metadata of one hub skill.
func (a *App) GetHubSkill(slug string) (*hub.Detail, error) {
	detail, err := a.hubClient.Get(a.ctx, slug)
	if err != nil {
		return nil, a.fail(err)
	}
	return detail, nil
}

// InstallHubSkill downloads a skill from the hub and imports it into
// the central repository.
func (a *App) InstallHubSkill(slug, version, name string) (*catalog.Skill, error) {
	skill, err := a.installer.ImportHub(a.ctx, slug, version, name)
	if err != nil {
		return nil, a.fail(err)
	}
	a.bus.Publish(eventbus.TopicSkillChanged, skill.Name)
	return skill, nil
}
