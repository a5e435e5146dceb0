/*
Package passthrough implements the path-translation and file-handle lifecycle
layer of passthroughfs.

A FileSystem projects a single backend directory (the backend root) as a
filesystem tree. Every operation receives a virtual path, always rooted at
"/", which is translated into a backend path by prefixing the backend root.
The translated path is then handed to the matching backend call:

	virtual "/docs/a.txt"  ──Translate──▶  "/srv/data/docs/a.txt"  ──▶  lstat/open/rename/...

# Components

	┌──────────────────────────────────────────────┐
	│ FileSystem (operation surface)               │
	│  ├─ Translator      virtual → backend path   │
	│  ├─ handle table    Handle → owned fd        │
	│  ├─ ReadDir         lazy directory listing   │
	│  ├─ Read/Write      positioned I/O           │
	│  └─ metadata        stat/chmod/rename/...    │
	└──────────────────────────────────────────────┘
	                     │
	┌──────────────────────────────────────────────┐
	│ Backend (syscall surface, golang.org/x/sys)  │
	└──────────────────────────────────────────────┘

# Sessions

Open and Create return an opaque Handle that owns exactly one backend
descriptor. Read and Write take the Handle, never a raw descriptor. Release
closes the descriptor once and retires the Handle; handle values are never
reused, so a stale Handle fails with EBADF instead of reaching another
session's descriptor.

# Errors

Every failure is returned as a *errors.FSError from pkg/errors carrying the
POSIX errno of the backend failure. Callers that speak errno (the FUSE
adapters) use errors.Errno to extract it.

# Concurrency

The backend root is immutable and the handle table is the only shared
mutable state. Operations on the same path from concurrent callers rely on
the backend filesystem's own atomicity; nothing here serializes them.
*/
package passthrough
