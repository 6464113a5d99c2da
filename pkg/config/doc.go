// Package config provides workbench settings, the project layout, CUE schemas
// and Starlark hook evaluation for iotwb.
//
// # Settings
//
// Settings are read from ~/.iotwb/settings.yaml (or $IOTWB_CONFIG). A .env
// file in the working directory and IOTWB_* environment variables override
// file values:
//
//	s, err := config.LoadSettings("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Layout
//
// Layout is the single set of well-known file and folder names (descriptor
// file, container marker, device and build folders, board template names).
// It is passed by value to the project orchestrator at construction.
//
// # Schemas
//
// SchemaRegistry validates project descriptors and board catalog entries with
// CUE definitions:
//
//	sr := config.NewSchemaRegistry()
//	if err := sr.ValidateDescriptor(ctx, data); err != nil {
//	    return err
//	}
//
// # Hooks
//
// HookEvaluator runs Starlark pre-compile and pre-upload hooks. A hook skips
// the phase by assigning proceed = False and aborts it with fail().
package config
