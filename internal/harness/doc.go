// Package harness runs pipeline scenarios described in YAML.
//
// A scenario seeds a throwaway source/destination/error tree, runs one or
// more passes through a real mover.Pipeline, and then checks where files
// ended up. Every run uses a testutil.FakeClock and a fixed pass id, so
// the resulting trace is byte-identical across runs and can be compared
// against a golden file.
//
// # Scenario format
//
//	name: same-minute
//	description: Records sharing a subject and minute get consecutive seconds
//	engine: memory            # memory (default) or durable
//	history: 1000             # default 1000; <= 0 disables eviction
//	passes:
//	  - files:
//	      - name: a.xml
//	        subject: P001
//	        date: "2016-01-01T10:15"
//	      - name: notes.txt
//	        content: hello
//	    busy: [b.xml]         # reported as locked for this pass only
//	    restart: false        # reopen the engine before this pass
//	    expect:
//	      patched: 1
//	      passthrough: 1
//	assertions:
//	  - type: destination
//	    file: a.xml
//	    timestamp: "2016-01-01T10:15:00"
//	  - type: quarantined
//	    file: b.xml
//	    count: 1
//	  - type: remaining
//	    count: 0
//	  - type: history
//	    count: 1
//
// Trace targets are relative to the scenario root ("out/a.xml"). Quarantine
// suffixes are replaced by their order of appearance ("err/b.xml.1").
package harness
