// Package dfuse implements ST's DfuSe 1.1a address-oriented extensions
// on top of the generic DFU protocol in internal/dfu: the command
// channel (SET_ADDRESS/ERASE_PAGE/MASS_ERASE/READ_UNPROTECT), the
// element-aware transfer engine, and the DfuSe file format.
package dfuse

import "github.com/flashforge/dfu-util/internal/memlayout"

// Context replaces the C source's module-level globals (last_erased,
// mem_layout, dfuse_force, dfuse_leave, dfuse_unprotect,
// dfuse_mass_erase, dfuse_address, dfuse_length) with one explicit
// struct threaded through every call, per spec.md §9 design note 9b.
// One Context is constructed per DfuSe operation.
type Context struct {
	MemLayout memlayout.Layout

	// LastErased is the page-aligned address of the most recently
	// issued ERASE_PAGE, used to skip redundant erases of the same
	// page. It is meaningful only once MarkErased has run: the
	// unexported erasedIsSet flag distinguishes "erased at address 0"
	// from "never erased".
	LastErased   uint32
	erasedIsSet  bool

	Force      bool
	Leave      bool
	Unprotect  bool
	MassErase  bool

	// Address and Length are the --dfuse-address option's parsed
	// fields: explicit target address and, for upload, an explicit
	// byte count.
	Address uint32
	Length  uint32
}

// MarkErased records addr's containing page as the most recently erased
// page.
func (c *Context) MarkErased(addr uint32) {
	c.LastErased = addr
	c.erasedIsSet = true
}

// ErasedPageMatches reports whether addr falls on the same page as the
// last erase, so the caller can skip a redundant ERASE_PAGE.
func (c *Context) ErasedPageMatches(addr, pageSize uint32) bool {
	if !c.erasedIsSet || pageSize == 0 {
		return false
	}
	return pageAlign(addr, pageSize) == pageAlign(c.LastErased, pageSize)
}

func pageAlign(addr, pageSize uint32) uint32 {
	return AlignToPage(addr, pageSize)
}

// AlignToPage rounds addr down to the start of its pageSize-aligned
// page. pageSize is assumed to be a power of two, true of every real
// flash part's erase granularity.
func AlignToPage(addr, pageSize uint32) uint32 {
	if pageSize == 0 {
		return addr
	}
	return addr &^ (pageSize - 1)
}
