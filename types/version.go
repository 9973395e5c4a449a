package types

// Version is the canonical project version.
// The server, client and CLI share this version.
const Version = "0.3.0"
