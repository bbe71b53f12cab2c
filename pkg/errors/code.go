package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10099: Generic errors
// 10100-10199: Configuration errors
// 10200-10299: Kernel and syscall errors
// 10300-10399: I/O errors
// 10400-10499: Rendezvous protocol errors

const (
	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalError ErrorCode = 10001
	InvalidInput  ErrorCode = 10002
	Timeout       ErrorCode = 10003

	// Configuration errors (10100-10199)
	ConfigurationError ErrorCode = 10100
	InvalidIDMap       ErrorCode = 10101
	InvalidNamespaces  ErrorCode = 10102
	MountPointMissing  ErrorCode = 10103

	// Kernel errors (10200-10299)
	SyscallFailure ErrorCode = 10200
	SpawnFailed    ErrorCode = 10201

	// I/O errors (10300-10399)
	IoFailure     ErrorCode = 10300
	CommandFailed ErrorCode = 10301
	PeerClosed    ErrorCode = 10302

	// Rendezvous protocol (10400-10499)
	ProtocolDeviation ErrorCode = 10400
)

var errorMessages = map[ErrorCode]string{
	Success:       "Success",
	InternalError: "Internal error",
	InvalidInput:  "Invalid input",
	Timeout:       "Operation timed out",

	ConfigurationError: "Invalid configuration",
	InvalidIDMap:       "Malformed identity map",
	InvalidNamespaces:  "Unsupported namespace combination",
	MountPointMissing:  "Mount point does not exist",

	SyscallFailure: "System call failed",
	SpawnFailed:    "Failed to spawn container process",

	IoFailure:     "I/O operation failed",
	CommandFailed: "Entry command failed",
	PeerClosed:    "Peer closed the control channel",

	ProtocolDeviation: "Unexpected control token",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// ExitStatus returns the process exit status the CLI uses for the error code
func (c ErrorCode) ExitStatus() int {
	switch {
	case c == Success:
		return 0
	case c >= 10100 && c < 10200, c == InvalidInput:
		return 2
	case c == Timeout:
		return 124
	case c == CommandFailed:
		return 126
	default:
		return 1
	}
}
