// Package clinicore is a healthcare workflow orchestration and retrieval
// core. It executes fixed clinical workflow templates over capability-bound
// agents, coordinates multi-agent collaborations, plans ad-hoc tasks, and
// answers clinical questions with retrieval-augmented generation grounded on
// stored documents and guidelines.
//
// The package tree is a library, not a service: a host process loads a
// config.Config, assembles a runtime.Runtime and drives the workflow engine,
// coordinator, planner and RAG service directly.
package clinicore
