package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		componentNamingPolicy(),
		cloudSessionPolicy(),
		projectHostPolicy(),
	}
}

// componentNamingPolicy warns about component names Azure will reject.
func componentNamingPolicy() Policy {
	return Policy{
		Name:        "component-naming",
		Description: "Cloud component names should be 3 to 50 characters of letters, numbers and hyphens",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"naming", "azure"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package iotwb.policies.naming

import rego.v1

deny contains violation if {
	name := input.component
	count(name) < 3
	violation := {
		"message": sprintf("Component name '%s' should be at least 3 characters long", [name]),
		"component": name,
	}
}

deny contains violation if {
	name := input.component
	count(name) > 50
	violation := {
		"message": sprintf("Component name '%s' should not exceed 50 characters", [name]),
		"component": name,
	}
}

deny contains violation if {
	name := input.component
	not regex.match("^[a-zA-Z0-9-]+$", name)
	violation := {
		"message": sprintf("Component name '%s' should contain only letters, numbers and hyphens", [name]),
		"component": name,
	}
}`,
	}
}

// cloudSessionPolicy requires a subscription and a resource group.
func cloudSessionPolicy() Policy {
	return Policy{
		Name:        "cloud-session",
		Description: "Provisioning and deployment need a subscription and a resource group",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"azure", "session"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package iotwb.policies.session

import rego.v1

deny contains violation if {
	not input.session
	violation := {
		"message": sprintf("No cloud session for %s", [input.component]),
		"component": input.component,
	}
}

deny contains violation if {
	input.session
	object.get(input.session, "subscription_id", "") == ""
	violation := {
		"message": sprintf("No subscription selected for %s", [input.component]),
		"component": input.component,
	}
}

deny contains violation if {
	input.session
	object.get(input.session, "resource_group", "") == ""
	violation := {
		"message": sprintf("No resource group selected for %s", [input.component]),
		"component": input.component,
	}
}`,
	}
}

// projectHostPolicy blocks cloud operations from folders that are not projects.
func projectHostPolicy() Policy {
	return Policy{
		Name:        "project-host",
		Description: "Cloud operations run only from workspace or container projects",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"project"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package iotwb.policies.host

import rego.v1

allowed_hosts := {"Workspace", "Container"}

deny contains violation if {
	not allowed_hosts[input.host_type]
	violation := {
		"message": sprintf("Project host type '%s' cannot %s cloud components", [input.host_type, input.phase]),
		"component": input.component,
	}
}`,
	}
}
