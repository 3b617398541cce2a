// Package textutil turns media titles and language codes into safe file-name
// components.
package textutil
