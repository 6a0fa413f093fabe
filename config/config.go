// Package config gathers the kernel's sizing constants in one place,
// the way the teacher gathers system-wide limits into limits.Syslimit_t.
package config

// PageShift is the base-2 exponent of the page size.
const PageShift uint = 12

// PageSize is the size of a single page in bytes.
const PageSize int = 1 << PageShift

// PageOffsetMask masks the in-page offset of a byte address.
const PageOffsetMask int = PageSize - 1

// StackPages is the fixed number of pages reserved for the user stack.
const StackPages int = 18

// UserStack is the first byte address above the top of the user stack.
const UserStack int = 0x7fffffff &^ (PageSize - 1)

// PidKern is the pid reserved for the kernel; never allocated to a user process.
const PidKern int = 1

// PidMin is the first pid handed out to a user process.
const PidMin int = 2

// PidMax bounds the process table; pids in [0, PidMax) are valid indices.
const PidMax int = 1 << 13

// OpenMax is the number of file-descriptor slots per process.
const OpenMax int = 64

// ArgMax bounds the packed size of an execv argv buffer.
const ArgMax int = 64 * 1024

// NameMax bounds a single path argument copied in from user space.
const NameMax int = 1024

// PageTableCapacityMin is the floor below which a page table never shrinks.
const PageTableCapacityMin int = 8

// PageTableGrowthFactor is the multiplier used to grow or shrink capacity.
const PageTableGrowthFactor int = 2

// PageTableLoadFactorMax triggers a grow when exceeded after an insert.
const PageTableLoadFactorMax float64 = 0.7

// PageTableLoadFactorMin triggers a shrink when undercut after a remove.
const PageTableLoadFactorMin float64 = 0.1

// AddrSpaceInitialCapacity is the page table size a fresh address space starts with.
const AddrSpaceInitialCapacity int = 32
