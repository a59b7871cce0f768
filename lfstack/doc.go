// Package lfstack implements a linearizable lock-free stack with O(1)
// size. Popped nodes are retired through a hazard domain and recycled
// through a pool once no concurrent popper can still be reading them;
// that deferral is what rules out the classic ABA corruption on the
// head CAS.
package lfstack
