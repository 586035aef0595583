package wallsim

import "context"

// runSequential scans all sections still below the target height once per
// day, in profile order. With NumCrews > 0 at most that many sections are
// incremented per day; the next day's scan restarts from the first profile.
func (s *Simulator) runSequential(ctx context.Context, p Params, abort *Abort) (*Result, error) {
	cfg := p.Config.Clone()
	daily := DailyUsage{}
	crewLimit := p.NumCrews
	day := 1

	for {
		if ctx.Err() != nil || abort.Signaled() {
			return nil, ErrAborted
		}

		workDone := false
		crewsWorkedToday := 0
		allCrewsFinished := false

		for profileIndex := range cfg {
			for i, height := range cfg[profileIndex] {
				if height >= s.limits.MaxSectionHeight {
					continue
				}

				cfg[profileIndex][i]++
				record(daily, day, profileIndex+1, s.limits.IcePerFoot)
				workDone = true

				if crewLimit > 0 {
					crewsWorkedToday++
					if crewsWorkedToday == crewLimit {
						allCrewsFinished = true
						break
					}
				}
			}
			if allCrewsFinished {
				break
			}
		}

		if !workDone {
			break
		}
		day++
	}

	return s.finalize(daily), nil
}
