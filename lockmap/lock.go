// lockmap is a sharded map of per-block locks.
//
// The API is as if LockMap held a lock for every block number; Acquire(bn)
// takes the lock for bn and Release(bn) gives it up. Mutating operations
// lock the blocks they rewrite (an inode block, a directory-entry array) and
// the directory whose names they check, so read-modify-write sequences on the
// same block never interleave.
//
// Only blocks that are held or waited on have state. Shard i keeps the state
// for every bn with bn % NSHARD = i; acquiring a lock synchronizes only with
// threads touching the same shard.
package lockmap

import (
	"sync"

	"github.com/mit-pdos/blockfs/common"
)

type lockState struct {
	held    bool
	cond    *sync.Cond
	waiters uint64
}

type lockShard struct {
	mu    *sync.Mutex
	state map[common.Bnum]*lockState
}

func mkLockShard() *lockShard {
	mu := new(sync.Mutex)
	return &lockShard{
		mu:    mu,
		state: make(map[common.Bnum]*lockState),
	}
}

func (lmap *lockShard) acquire(bn common.Bnum) {
	lmap.mu.Lock()
	for {
		state, ok := lmap.state[bn]
		if !ok {
			state = &lockState{
				held:    false,
				cond:    sync.NewCond(lmap.mu),
				waiters: 0,
			}
			lmap.state[bn] = state
		}
		if !state.held {
			state.held = true
			break
		}
		state.waiters += 1
		state.cond.Wait()
		// release keeps the state around while anyone waits on it
		state.waiters -= 1
	}
	lmap.mu.Unlock()
}

func (lmap *lockShard) release(bn common.Bnum) {
	lmap.mu.Lock()
	state, ok := lmap.state[bn]
	if !ok || !state.held {
		lmap.mu.Unlock()
		panic("release of unheld block lock")
	}
	state.held = false
	if state.waiters > 0 {
		state.cond.Signal()
	} else {
		delete(lmap.state, bn)
	}
	lmap.mu.Unlock()
}

func (lmap *lockShard) held(bn common.Bnum) bool {
	lmap.mu.Lock()
	defer lmap.mu.Unlock()
	state, ok := lmap.state[bn]
	return ok && state.held
}

const NSHARD uint64 = 43

type LockMap struct {
	shards []*lockShard
}

func MkLockMap() *LockMap {
	var shards []*lockShard
	for i := uint64(0); i < NSHARD; i++ {
		shards = append(shards, mkLockShard())
	}
	return &LockMap{
		shards: shards,
	}
}

func (lmap *LockMap) Acquire(bn common.Bnum) {
	lmap.shards[bn%NSHARD].acquire(bn)
}

func (lmap *LockMap) Release(bn common.Bnum) {
	lmap.shards[bn%NSHARD].release(bn)
}

// Held reports whether bn is currently locked.
func (lmap *LockMap) Held(bn common.Bnum) bool {
	return lmap.shards[bn%NSHARD].held(bn)
}
