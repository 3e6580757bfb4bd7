package lab

import (
	"fmt"
	"strings"

	"github.com/BISHOP-X/BABCOCK-VPL/core/course"
)

const defaultRunOutput = "Hello World!"

var runtimes = map[string]string{
	course.LangPython: "Python 3.9.2",
	course.LangJava:   "OpenJDK 17",
	course.LangCpp:    "g++ 11.4",
}

// RunResult is the transcript of a simulated run.
type RunResult struct {
	Lines  []string `json:"lines"`
	Output string   `json:"output"` // what a submission should record as its output
}

func (r RunResult) String() string { return strings.Join(r.Lines, "\n") }

// SimulateRun never compiles nor executes code: the output is the expected output of asg
// (or a greeting) framed by the lines a terminal would print.
func (svc *service) SimulateRun(asg course.Assignment, req RunRequest) RunResult {
	return SimulateRun(asg, req)
}

func SimulateRun(asg course.Assignment, req RunRequest) RunResult {
	runtime, ok := runtimes[req.Language]
	if !ok {
		runtime = runtimes[course.LangPython]
	}

	output := defaultRunOutput
	if asg.ExpectedOutput != nil && strings.TrimSpace(*asg.ExpectedOutput) != "" {
		output = *asg.ExpectedOutput
	}

	lines := []string{
		"> Initializing virtual environment...",
		fmt.Sprintf("> %s detected", runtime),
		"> Executing script...",
	}
	if strings.TrimSpace(req.Code) == "" {
		output = ""
		lines = append(lines, "> Nothing to run")
	} else {
		lines = append(lines, strings.Split(output, "\n")...)
	}
	lines = append(lines, "> Execution finished in 0.02s")
	return RunResult{Lines: lines, Output: output}
}
