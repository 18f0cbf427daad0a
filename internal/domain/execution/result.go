package execution

// Result classifies the terminal outcome of one test run.
type Result string

const (
	// ResultSuccess means the test program printed the success sentinel as
	// its final output line.
	ResultSuccess Result = "SUCCESS"
	// ResultCompileFailed means the compiler rejected the test source.
	ResultCompileFailed Result = "COMPILE_FAILED"
	// ResultExecFailed means the test program completed but its final output
	// line was not the success sentinel.
	ResultExecFailed Result = "EXEC_FAILED"
	// ResultExecTimeout means the test program did not complete within the
	// configured timeout.
	ResultExecTimeout Result = "EXEC_TIMEOUT"
	// ResultError means an unexpected harness-side fault: an I/O error, a
	// process that produced no output, or a failed setup command.
	ResultError Result = "ERROR"
	// ResultUnsupported means the source path does not name a runnable
	// single-file test; no compilation was attempted.
	ResultUnsupported Result = "UNSUPPORTED"
)
