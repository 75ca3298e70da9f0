package link

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/stratify-tools/link/driverpath"
)

// GetPathList drains the enumerator (or, if already connected, the live
// transport's path iterator) into an ordered sequence of device addresses.
// Insertion order equals enumeration order; the contract guarantees no
// duplicates.
func (s *Session) GetPathList() ([]driverpath.Path, error) {
	const op = "get_path_list"
	if err := s.guard(op); err != nil {
		return nil, err
	}

	var raw []string
	var err error
	switch {
	case s.cfg.Enumerator != nil:
		raw, err = s.cfg.Enumerator.Enumerate()
	case s.client != nil:
		raw, err = s.client.GetPathList()
	default:
		return nil, s.fail(op, KindNotConnected, nil)
	}
	if err != nil {
		return nil, s.fail(op, classifyTransportErr(err), err)
	}

	paths := make([]driverpath.Path, 0, len(raw))
	for _, r := range raw {
		paths = append(paths, driverpath.Parse(r))
	}
	return paths, nil
}

// InfoEntry pairs a discovered device address with its sys-info snapshot.
type InfoEntry struct {
	Path    driverpath.Path
	SysInfo SysInfo
}

// GetInfoList iterates the path list and, for each entry, performs a
// transient connect→sys-info→disconnect using an independent Session so the
// caller's own connection state is untouched. Entries whose connect fails
// are skipped; the iteration itself never fails because one device is
// unreachable.
//
// Transient probes run with bounded concurrency (Config.DiscoveryParallel,
// default 4) via errgroup.SetLimit. Each probe owns its own Session and
// Dialer-issued pipe; no state is shared across them or with s, so this
// does not violate the "single connection driven by one thread" rule for a
// live Session — it only parallelizes independent, short-lived
// discovery connections.
func (s *Session) GetInfoList(ctx context.Context) ([]InfoEntry, error) {
	const op = "get_info_list"
	if err := s.guard(op); err != nil {
		return nil, err
	}

	paths, err := s.GetPathList()
	if err != nil {
		return nil, err
	}

	results := make([]*InfoEntry, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.DiscoveryParallel)

	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			probe := NewSession(s.dialer, WithLogger(s.cfg.Logger))
			if err := probe.Connect(gctx, p, false); err != nil {
				return nil
			}
			info := probe.SysInfo()
			suppress(probe.Disconnect)
			results[i] = &InfoEntry{Path: p, SysInfo: info}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]InfoEntry, 0, len(paths))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}
