// Package wsdeque implements the Arora–Blumofe–Plaxton work-stealing
// deque over a fixed-capacity array of atomic job pointers. The owner
// pushes and pops at the bottom; any number of thieves steal from the
// top. A packed {tag, top} pair settles the final-item race with a
// single CAS, and the tag distinguishes queues that were emptied and
// refilled. Capacity is fixed at construction; overflowing it is a
// configuration error and panics.
package wsdeque
