package optimizertest

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/squareup/planopt/conf"
	"github.com/squareup/planopt/errors"
	planoptlog "github.com/squareup/planopt/log"
	"github.com/squareup/planopt/optimizer"
	"github.com/squareup/planopt/plan"
	"github.com/squareup/planopt/plan/parser"
)

const (
	TestPrefix = "" // Set this to the name of a test if you want to only run that test, e.g. during development
	testDir    = "./testdata"
)

var (
	lock       sync.Mutex
	updateFlag = flag.Bool("update", false, "If set, expected test results in *test_out.txt will be updated")
)

type scriptTestsuite struct {
	suite suite.Suite
	tests map[string]*scriptTest
}

func (w *scriptTestsuite) T() *testing.T {
	return w.suite.T()
}

func (w *scriptTestsuite) SetT(t *testing.T) {
	t.Helper()
	w.suite.SetT(t)
}

// testScripts runs every <name>_test_script.txt in testdata and compares what it prints against
// <name>_test_out.txt.
func testScripts(t *testing.T) {
	t.Helper()

	log.SetFormatter(&log.TextFormatter{
		DisableQuote:           true,
		FullTimestamp:          true,
		DisableLevelTruncation: true,
		TimestampFormat:        planoptlog.TimestampFormat,
	})

	lock.Lock()
	defer lock.Unlock()

	ts := &scriptTestsuite{tests: make(map[string]*scriptTest)}
	ts.setup(t)
	suite.Run(t, ts)
}

func (w *scriptTestsuite) TestScripts() {
	names := make([]string, 0, len(w.tests))
	for name := range w.tests {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w.suite.Run(name, w.tests[name].run)
	}
}

func (w *scriptTestsuite) setup(t *testing.T) {
	t.Helper()
	files, err := os.ReadDir(testDir)
	require.NoError(t, err)
	sort.SliceStable(files, func(i, j int) bool {
		return strings.Compare(files[i].Name(), files[j].Name()) < 0
	})
	for _, file := range files {
		fileName := file.Name()
		if file.IsDir() || (TestPrefix != "" && !strings.HasPrefix(fileName, TestPrefix)) {
			continue
		}
		if !strings.HasSuffix(fileName, "_test_out.txt") && !strings.HasSuffix(fileName, "_test_script.txt") {
			t.Fatalf("test file %s has invalid name. test files should be of the form <test_name>_test_script.txt or <test_name>_test_out.txt", fileName)
		}
		index := strings.Index(fileName, "_test_")
		testName := fileName[:index]
		st, ok := w.tests[testName]
		if !ok {
			st = &scriptTest{testName: testName, testSuite: w, outFile: testName + "_test_out.txt"}
			w.tests[testName] = st
		}
		if strings.HasSuffix(fileName, "_test_script.txt") {
			st.scriptFile = fileName
		}
	}
}

type scriptTest struct {
	testSuite  *scriptTestsuite
	testName   string
	scriptFile string
	outFile    string
	output     *strings.Builder
	cfg        *conf.Config
	rule       *optimizer.ReplaceWithOrderPreservingVariants
	showInput  bool
}

func (st *scriptTest) run() {
	log.Infof("Running script test %s", st.testName)
	start := time.Now()

	require := st.testSuite.suite.Require()
	require.NotEmpty(st.scriptFile, fmt.Sprintf("script test %s is missing script file %s_test_script.txt", st.testName, st.testName))

	b, err := os.ReadFile(testDir + "/" + st.scriptFile)
	require.NoError(err)
	scriptContents := strings.TrimRight(string(b), "\n")

	// Every command, whether a directive or a plan, must end with a semicolon followed by a newline
	scriptContents = strings.TrimSuffix(scriptContents, ";")
	commands := strings.Split(scriptContents, ";\n")

	st.output = &strings.Builder{}
	st.cfg = conf.NewTestConfig(false)
	st.rule = optimizer.NewReplaceWithOrderPreservingVariants()
	st.showInput = false
	for _, command := range commands {
		st.output.WriteString(command + ";\n")
		command = strings.TrimSpace(command)
		if command == "" {
			continue
		}
		log.Debugf("Executing: %s", command)
		if strings.HasPrefix(command, "--") {
			st.executeDirective(require, command)
		} else {
			st.executePlan(require, command)
		}
	}
	st.compareOutput(require)
	log.Infof("Finished running script test %s time taken %d ms", st.testName, time.Since(start).Milliseconds())
}

func (st *scriptTest) compareOutput(require *require.Assertions) {
	if *updateFlag {
		err := os.WriteFile(testDir+"/"+st.outFile, []byte(st.output.String()), 0o600)
		require.NoError(err)
		return
	}
	b, err := os.ReadFile(testDir + "/" + st.outFile)
	require.NoError(err, fmt.Sprintf("script test %s is missing out file %s", st.testName, st.outFile))
	expected, actual := string(b), st.output.String()
	if expected != actual {
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(expected, actual, false)
		require.Failf("output does not match", "script test %s:\n%s", st.testName, dmp.DiffPrettyText(diffs))
	}
}

// executeDirective handles the lines starting with "--". Lines starting with "--#" are comments.
func (st *scriptTest) executeDirective(require *require.Assertions, command string) {
	if strings.HasPrefix(command, "--#") {
		return
	}
	parts := strings.Fields(command)
	switch parts[0] {
	case "--set":
		require.Equal(3, len(parts), "usage: --set <option> <value>")
		st.set(require, parts[1], parts[2])
	case "--show-input":
		require.Equal(2, len(parts), "usage: --show-input true|false")
		st.showInput = parseBool(require, parts[1])
	default:
		require.Failf("unknown directive", "unknown directive %s", parts[0])
	}
}

func (st *scriptTest) set(require *require.Assertions, option string, value string) {
	switch option {
	case "prefer_existing_sort":
		st.cfg.PreferExistingSort = parseBool(require, value)
	case "skip_pipeline_check":
		st.cfg.SkipPipelineCheck = parseBool(require, value)
	case "target_partitions":
		st.cfg.TargetPartitions = parseInt(require, value)
	case "batch_size":
		st.cfg.BatchSize = parseInt(require, value)
	case "repartition_preferred":
		st.rule.RepartitionPreferred = parseBool(require, value)
	case "merge_preferred":
		st.rule.MergePreferred = parseBool(require, value)
	default:
		require.Failf("unknown option", "unknown option %s", option)
	}
}

func (st *scriptTest) executePlan(require *require.Assertions, text string) {
	root, err := parser.ParsePlan(text, st.cfg)
	if err != nil {
		st.writeError(require, "Failed to parse plan", err)
		return
	}
	if st.showInput {
		st.output.WriteString("input:\n" + plan.Format(root) + "\noptimized:\n")
	}
	rules := []optimizer.Rule{st.rule}
	if !st.cfg.SkipPipelineCheck {
		rules = append(rules, &optimizer.PipelineChecker{})
	}
	optimized, err := optimizer.NewOptimizerWithRules(st.cfg, rules...).Optimize(root)
	if err != nil {
		st.writeError(require, "Failed to optimize plan", err)
		return
	}
	st.output.WriteString(plan.Format(optimized) + "\n")
}

func (st *scriptTest) writeError(require *require.Assertions, prefix string, err error) {
	var pe errors.PlanError
	require.True(errors.As(err, &pe), "unexpected error %+v", err)
	st.output.WriteString(fmt.Sprintf("%s: %s\n", prefix, pe.Msg))
}

func parseBool(require *require.Assertions, s string) bool {
	b, err := strconv.ParseBool(s)
	require.NoError(err)
	return b
}

func parseInt(require *require.Assertions, s string) int {
	i, err := strconv.Atoi(s)
	require.NoError(err)
	return i
}
