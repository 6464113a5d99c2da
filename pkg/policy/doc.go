// Package policy provides Open Policy Agent (OPA) integration for iotwb.
//
// The Engine implements engine.Gate. Before a cloud component is provisioned
// or deployed, the project asks the gate whether the item may run. Every
// enabled Rego policy is evaluated against a PolicyInput built from the gate
// request, and the deny sets are collected into a PolicyResult.
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if _, err := eng.LoadProjectPolicies(ctx, root, settings.Layout); err != nil {
//	    return err
//	}
//	decision, err := eng.Evaluate(ctx, engine.GateRequest{...})
//
// # Built-in Policies
//
//  1. component-naming - warns about names Azure resource providers reject
//  2. cloud-session - requires a subscription and a resource group
//  3. project-host - cloud operations run only from workspace or container projects
//
// # Project Policies
//
// Rego and JSON policy files under the project's .iotworkbench/policies
// folder are loaded on top of the built-in set. A JSON file holds either one
// policy definition or a bundle with a "policies" array. Policies listed in
// the descriptor's disabledPolicies key are turned off, which is what
// `iotwb policy disable` writes:
//
//	package iotwb.policies.region
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.phase == "deploy"
//	    input.component_type == "CosmosDB"
//	    violation := {
//	        "message": "CosmosDB accounts are created by the platform team",
//	        "severity": "error",
//	        "component": input.component,
//	    }
//	}
//
// # Severity Levels
//
// Violations with severity error or critical deny the item. Info and warning
// violations are logged and the item runs. A .rego file has severity error
// unless a deny entry carries its own severity.
package policy
