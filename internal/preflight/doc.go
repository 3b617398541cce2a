// Package preflight provides readiness checks for the output directories and
// external tools downie depends on.
//
// These checks run in two contexts:
//   - The downloaders call CheckDirectoryAccess after creating an output
//     directory so a permissions problem surfaces before any network work.
//   - The CLI "downie deps" command uses RunAll and CheckSystemDeps to display
//     overall readiness.
package preflight
