// Package harness runs rule specs through scripted model updates and checks
// the results.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	rules: rules/loan.cue        # relative to the scenario file
//	initial: { price: 100, qty: 1 }
//	steps:
//	  - patch: { qty: 3 }         # dotted paths, arrays by index
//	    expect: { total: 300 }    # subset match
//	  - set: { price: 10, qty: 3 }
//	    settle: true
//	  - reset: true
//	  - patch: { qty: "three" }
//	    error: NOT_NUMBER
//	assertions:
//	  - type: dirty
//	    path: total
//	  - type: clean
//	    path: lines.e1            # arrays by identity token
//	  - type: log_count
//	    count: 2
//	  - type: model
//	    path: lines.0
//	    expect: { total: 30 }
//
// # Deterministic Testing
//
// Array elements are tagged by a sequence generator (e1, e2, ... unless
// token_prefix says otherwise), so a scenario produces the same trace on
// every run. Each trace event holds the canonical model, the dirty tree,
// and the changes reported by nodes marked log: true.
//
// RunWithGolden compares that trace against testdata/golden/<name>.golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/loan.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
