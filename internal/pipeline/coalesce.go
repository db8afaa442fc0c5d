package pipeline

import (
	"dropfiles/internal/model"
	"time"
)

var kindRank = map[model.ChangeKind]int{
	model.ChangeCreated:  0,
	model.ChangeModified: 1,
	model.ChangeDeleted:  2,
}

// Coalesce groups changes into batches. The first change after an idle period
// opens a window; everything received until it closes is delivered as one
// batch, with repeated paths merged by Created > Modified > Deleted. Empty
// batches are never sent. The output closes after inCh closes and the pending
// batch is flushed.
func Coalesce(inCh <-chan model.FileChange, window time.Duration) <-chan []model.FileChange {
	outCh := make(chan []model.FileChange, 1)

	go func() {
		defer close(outCh)

		var (
			batch  []model.FileChange
			index  = make(map[string]int)
			timer  *time.Timer
			timerC <-chan time.Time
		)

		flush := func() {
			if len(batch) > 0 {
				outCh <- batch
			}
			batch = nil
			index = make(map[string]int)
		}

		for {
			select {
			case change, ok := <-inCh:
				if !ok {
					if timer != nil {
						timer.Stop()
					}
					flush()
					return
				}

				if i, seen := index[change.Path]; seen {
					if kindRank[change.Kind] < kindRank[batch[i].Kind] {
						batch[i].Kind = change.Kind
					}
				} else {
					index[change.Path] = len(batch)
					batch = append(batch, change)
				}

				if timerC == nil {
					timer = time.NewTimer(window)
					timerC = timer.C
				}

			case <-timerC:
				timerC = nil
				flush()
			}
		}
	}()

	return outCh
}
