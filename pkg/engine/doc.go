// Package engine provides the core types of the iotwb project lifecycle orchestrator.
//
// # Overview
//
// An IoT workbench project is an ordered list of components (one or more
// devices plus optional cloud services) rooted at a folder on disk. The
// engine drives those components through the lifecycle phases:
//
//  1. Configure - scaffold device environment files (ConfigureProjectEnvironmentCore)
//  2. Compile   - build device code (Compile)
//  3. Upload    - flash or copy the build output to the target (Upload)
//  4. Provision - create the cloud resources the project needs (Provision)
//  5. Deploy    - push code to the provisioned cloud resources (Deploy)
//
// Phases run sequentially in component registration order. The first
// component that fails its prerequisite check aborts the whole phase.
//
// # Capability Model
//
// A component opts into a phase by implementing the matching capability
// interface:
//
//	type Compilable interface {
//	    Component
//	    CheckPrerequisites(ctx context.Context, phase Phase) (bool, error)
//	    Compile(ctx context.Context) (bool, error)
//	}
//
// Capabilities are resolved once, when the component is registered with a
// Project, and stored next to it as a Capabilities bit set.
//
// # Outcomes
//
// OperationOutcome accumulates the result of nested operations together with
// a history of prior operator/result/details triples. Every phase run by a
// Project folds its per-component results into one outcome, which is what the
// CLI journals and reports.
//
// # Error Handling
//
// Errors are classified by ErrorClass:
//
//   - Cancelled: the user declined a confirmation or cancelled a selection
//   - Prerequisite: a required tool or folder is missing
//   - Invariant: programmer or configuration error that ends the command
//   - Operational: a component operation failed
//
// A false return from a capability method is not an error. It means "not
// ready" or "skipped" and the caller reports it to the user.
package engine
