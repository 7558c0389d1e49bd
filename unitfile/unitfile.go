// SPDX-License-Identifier: MIT

// Package unitfile is a minimal INI-style parser for unit files. It is a
// supplemental, deliberately small stand-in for the full parser the
// supervision engine treats as an external collaborator: it covers exactly
// the directives the engine consumes and nothing of the original's wider
// directive surface (conditionals, templating, drop-ins).
package unitfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/unitd-project/unitd/unitconf"
)

// ParsedUnit is the result of parsing a single ".service" or ".socket"
// file.
type ParsedUnit struct {
	Kind    unitconf.Kind
	Common  unitconf.UnitConfig
	Service unitconf.ServiceConfig
	Socket  unitconf.SocketConfig
}

// ParseDir scans dir non-recursively for "*.service" and "*.socket" files
// and parses each one. It returns all parsed units plus the first error
// encountered, continuing past per-file errors so that one malformed file
// does not block discovery of the rest.
func ParseDir(dir string) ([]ParsedUnit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading unit directory %s: %w", dir, err)
	}
	var units []ParsedUnit
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".service" && ext != ".socket" {
			continue
		}
		path := filepath.Join(dir, name)
		u, err := ParseFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		units = append(units, u)
	}
	if len(errs) > 0 {
		return units, joinErrors(errs)
	}
	return units, nil
}

func joinErrors(errs []error) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%d unit file(s) failed to parse: %s", len(errs), strings.Join(msgs, "; "))
}

// ParseFile parses a single unit file.
func ParseFile(path string) (ParsedUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return ParsedUnit{}, err
	}
	defer f.Close()

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	kind := unitconf.KindService
	if filepath.Ext(path) == ".socket" {
		kind = unitconf.KindSocket
	}

	sections, err := scanSections(f)
	if err != nil {
		return ParsedUnit{}, err
	}

	u := ParsedUnit{
		Kind: kind,
		Common: unitconf.UnitConfig{
			Name: stem,
			Path: path,
		},
	}

	if unit := sections["unit"]; unit != nil {
		u.Common.Wants = splitList(unit["wants"])
		u.Common.Requires = splitList(unit["requires"])
		u.Common.Before = splitList(unit["before"])
		u.Common.After = splitList(unit["after"])
	}
	if install := sections["install"]; install != nil {
		u.Common.Install = &unitconf.InstallConfig{
			WantedBy:   splitList(install["wantedby"]),
			RequiredBy: splitList(install["requiredby"]),
		}
	}

	switch kind {
	case unitconf.KindService:
		if err := fillService(&u.Service, sections["service"]); err != nil {
			return ParsedUnit{}, err
		}
	case unitconf.KindSocket:
		if err := fillSocket(&u.Socket, sections["socket"]); err != nil {
			return ParsedUnit{}, err
		}
	}

	return u, nil
}

func fillService(sc *unitconf.ServiceConfig, kv map[string]string) error {
	if kv == nil {
		return fmt.Errorf("missing [Service] section")
	}
	if exec := kv["execstart"]; exec != "" {
		sc.Exec = unitconf.ParseCommandline(exec)
	}
	if stop := kv["execstop"]; stop != "" {
		sc.Stop = unitconf.ParseCommandline(stop)
	}
	sc.StartPre = splitCommandList(kv["execstartpre"])
	sc.StartPost = splitCommandList(kv["execstartpost"])
	sc.StopPost = splitCommandList(kv["execstoppost"])

	switch strings.ToLower(kv["type"]) {
	case "notify":
		sc.Type = unitconf.Notify
	case "oneshot":
		sc.Type = unitconf.OneShot
	default:
		sc.Type = unitconf.Simple
	}

	sc.Accept = parseBool(kv["accept"])
	sc.KeepAlive = parseBool(kv["restart"]) || parseBool(kv["keepalive"])
	sc.Sockets = splitList(kv["sockets"])

	var err error
	if sc.StartTimeout, err = parseTimeout(kv["timeoutstartsec"]); err != nil {
		return err
	}
	if sc.StopTimeout, err = parseTimeout(kv["timeoutstopsec"]); err != nil {
		return err
	}
	if sc.GeneralTimeout, err = parseTimeout(kv["timeoutsec"]); err != nil {
		return err
	}
	return nil
}

func fillSocket(sc *unitconf.SocketConfig, kv map[string]string) error {
	if kv == nil {
		return fmt.Errorf("missing [Socket] section")
	}
	if path := kv["listenstream"]; path != "" && !strings.Contains(path, ":") {
		sc.Kind = unitconf.SocketUnix
		sc.Path = path
		return nil
	}
	if hostport := kv["listenstream"]; hostport != "" {
		sc.Kind = unitconf.SocketInet
		host, portStr, found := strings.Cut(hostport, ":")
		if !found {
			return fmt.Errorf("ListenStream %q: expected host:port", hostport)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("ListenStream %q: bad port: %w", hostport, err)
		}
		sc.Host = host
		sc.Port = port
		return nil
	}
	return fmt.Errorf("[Socket] section missing ListenStream")
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on", "always":
		return true
	default:
		return false
	}
}

func parseTimeout(s string) (unitconf.Timeout, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return unitconf.Timeout{}, nil
	}
	if strings.EqualFold(s, "infinity") {
		return unitconf.Timeout{Infinite: true}, nil
	}
	secs, err := strconv.Atoi(s)
	if err != nil {
		return unitconf.Timeout{}, fmt.Errorf("bad timeout %q: %w", s, err)
	}
	return unitconf.Timeout{Duration: time.Duration(secs) * time.Second}, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.Fields(s)
	return fields
}

func splitCommandList(s string) []unitconf.Commandline {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	var out []unitconf.Commandline
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, unitconf.ParseCommandline(l))
	}
	return out
}

func scanSections(r io.Reader) (map[string]map[string]string, error) {
	sections := map[string]map[string]string{}
	var current map[string]string
	scanner := bufio.NewScanner(r)
	// unit files commonly carry multi-line Exec* directives continued
	// with a trailing backslash; accumulate those before key/value split.
	var pending string
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasSuffix(trimmed, "\\") {
			pending += strings.TrimSuffix(trimmed, "\\") + "\n"
			continue
		}
		if pending != "" {
			trimmed = pending + trimmed
			pending = ""
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
			continue
		}
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			name := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]"))
			current = map[string]string{}
			sections[name] = current
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("directive %q outside of any section", trimmed)
		}
		key, val, found := strings.Cut(trimmed, "=")
		if !found {
			return nil, fmt.Errorf("malformed directive %q", trimmed)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		if existing, ok := current[key]; ok && isListKey(key) {
			current[key] = existing + "\n" + val
		} else {
			current[key] = val
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sections, nil
}

func isListKey(key string) bool {
	switch key {
	case "execstartpre", "execstartpost", "execstoppost":
		return true
	default:
		return false
	}
}
