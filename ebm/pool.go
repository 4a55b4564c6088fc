package ebm

import "sync"

//Task is one unit of pool work.
type Task interface {
	Run()
}

//Pool runs queued tasks on a fixed set of worker goroutines.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup
}

//NewPool starts threadsNum workers draining the task queue.
func NewPool(threadsNum int) *Pool {
	pool := &Pool{tasks: make(chan Task, threadsNum)}
	for i := 0; i < threadsNum; i++ {
		pool.wg.Add(1)
		go func() {
			defer pool.wg.Done()
			for task := range pool.tasks {
				task.Run()
			}
		}()
	}
	return pool
}

//AddTask queues one task. Blocks when all workers are busy and the queue
//is full.
func (pool *Pool) AddTask(task Task) {
	pool.tasks <- task
}

//Close signals that no more tasks will arrive.
func (pool *Pool) Close() {
	close(pool.tasks)
}

//WaitAll blocks until every queued task has finished.
func (pool *Pool) WaitAll() {
	pool.wg.Wait()
}

//TaskBinSums aggregates one sample shard into a worker-private tensor.
type TaskBinSums struct {
	partial *BinTensor
	term    *Term
	data    *TermData
}

func (task *TaskBinSums) Run() {
	BinSums(task.partial, task.term, task.data)
}

//kMinSamplesPerShard keeps tiny aggregations single-threaded; sharding
//overhead dominates below this.
const kMinSamplesPerShard = 4096

//parallelBinSums partitions the sample range across workers, each owning a
//private tensor from its arena, then reduces the partials into result. The
//reduction order across workers is fixed by shard index, but callers must
//not depend on bit-exact reproducibility across thread counts; within a
//shard samples are processed in index order.
func parallelBinSums(result *BinTensor, term *Term, data *TermData, threadsNum int, arenas []*BinArena) {
	cShards := threadsNum
	if cShards > (data.CSamples+kMinSamplesPerShard-1)/kMinSamplesPerShard {
		cShards = (data.CSamples + kMinSamplesPerShard - 1) / kMinSamplesPerShard
	}
	if cShards <= 1 {
		BinSums(result, term, data)
		return
	}

	perSample := data.CScores
	if data.Classification {
		perSample = 2 * data.CScores
	}
	shardSize := (data.CSamples + cShards - 1) / cShards

	partials := make([]*BinTensor, 0, cShards)
	pool := NewPool(threadsNum)
	bounds := NewRange(0, data.CSamples, shardSize)
	iShard := 0
	for bounds.HasNext() {
		lo := bounds.GetNext()
		hi := lo + shardSize
		if hi > data.CSamples {
			hi = data.CSamples
		}
		columns := make([][]uint16, len(data.Columns))
		for d := range data.Columns {
			columns[d] = data.Columns[d][lo:hi]
		}
		shard := &TermData{
			Columns:        columns,
			GradHess:       data.GradHess[lo*perSample : hi*perSample],
			CSamples:       hi - lo,
			CScores:        data.CScores,
			Classification: data.Classification,
		}
		if data.Weights != nil {
			shard.Weights = data.Weights[lo:hi]
		}
		partial := arenas[iShard].Acquire(term.Shape(), data.CScores, data.Classification)
		partials = append(partials, partial)
		pool.AddTask(&TaskBinSums{partial: partial, term: term, data: shard})
		iShard++
	}
	pool.Close()
	pool.WaitAll()

	for _, partial := range partials {
		result.Add(partial)
	}
}
