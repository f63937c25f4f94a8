package fluid

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum particle count to use parallel stage
// execution. Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 256

// stageID selects which pipeline stage a work chunk belongs to.
type stageID int

const (
	stageDensity stageID = iota
	stageForces
	stageIntegrate
)

// workChunk represents a range of particles for a worker to process.
type workChunk struct {
	start, end int
	stage      stageID
	dt         float64
}

// scratch holds per-worker reusable buffers.
type scratch struct {
	neighbors []int32 // candidate buffer reused across queries
	contacts  int     // boundary contacts seen this tick
}

// workerPool holds resources for parallel stage computation. Workers are
// persistent goroutines fed chunks over workChan; the dispatch loop counts
// doneChan signals, which makes every runStage call a hard barrier between
// stages.
type workerPool struct {
	numWorkers int
	scratches  []scratch

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newWorkerPool() *workerPool {
	numWorkers := runtime.GOMAXPROCS(0)
	scratches := make([]scratch, numWorkers)
	for i := range scratches {
		scratches[i].neighbors = make([]int32, 0, 128)
	}
	return &workerPool{
		numWorkers: numWorkers,
		scratches:  scratches,
	}
}

// start launches persistent worker goroutines.
func (w *workerPool) start(s *Simulator) {
	if w.running {
		return
	}

	w.workChan = make(chan workChunk, w.numWorkers)
	w.doneChan = make(chan struct{}, w.numWorkers)
	w.stopChan = make(chan struct{})
	w.running = true

	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.worker(s, i)
	}
}

// stop signals all workers to exit and waits for them.
func (w *workerPool) stop() {
	if !w.running {
		return
	}

	close(w.stopChan)
	w.wg.Wait()
	close(w.workChan)
	close(w.doneChan)
	w.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (w *workerPool) worker(s *Simulator, workerID int) {
	defer w.wg.Done()
	sc := &w.scratches[workerID]

	for {
		select {
		case <-w.stopChan:
			return
		case chunk, ok := <-w.workChan:
			if !ok {
				return
			}
			s.runChunk(chunk, sc)
			w.doneChan <- struct{}{}
		}
	}
}

// runChunk dispatches a chunk to its stage function.
func (s *Simulator) runChunk(chunk workChunk, sc *scratch) {
	switch chunk.stage {
	case stageDensity:
		s.densityChunk(chunk.start, chunk.end, sc)
	case stageForces:
		s.forceChunk(chunk.start, chunk.end, sc)
	case stageIntegrate:
		s.integrateChunk(chunk.start, chunk.end, chunk.dt, sc)
	}
}

// runStage executes one pipeline stage over all n particles and returns only
// when every chunk has finished. Workers write exclusively to the output
// slots of their own particle range and read buffers frozen by the previous
// stage, so chunk partitioning never changes the arithmetic: results are
// bit-for-bit identical for any worker count.
func (s *Simulator) runStage(stage stageID, n int, dt float64) {
	if n < parallelThreshold {
		sc := &s.pool.scratches[0]
		s.runChunk(workChunk{start: 0, end: n, stage: stage, dt: dt}, sc)
		return
	}

	if !s.pool.running {
		s.pool.start(s)
	}

	numWorkers := s.pool.numWorkers
	chunkSize := (n + numWorkers - 1) / numWorkers

	chunksDispatched := 0
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}

		s.pool.workChan <- workChunk{start: start, end: end, stage: stage, dt: dt}
		chunksDispatched++
	}

	// Stage barrier: wait for all chunks before the next stage may read.
	for i := 0; i < chunksDispatched; i++ {
		<-s.pool.doneChan
	}
}
