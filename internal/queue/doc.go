package queue

// Package queue implements the task registry: a FIFO intake queue, the set of
// active tasks and a bounded history of finished ones. A single coarse lock
// guards all three so every task is observed in exactly one of them.
