package coordinator

// Version is the coordinator's protocol version. Workers compare this
// against their own compiled-in version at startup (spec.md §4.4) and
// refuse to attach on a mismatch.
const Version = "1.0.0"
