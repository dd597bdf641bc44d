package nin

// Version is the version string reported by nin -v, overridable at link
// time.
var Version = "0.1.0"
