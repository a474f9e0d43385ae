// Package propbag converts structured records to and from flat property
// bags, the string-keyed maps exchanged with the logic engine.
//
// Keys are dotted paths. List elements are addressed as name[i] and each
// list also carries a name_length entry, so "vnfs.vnf[0].vnf-id" and
// "vnfs.vnf_length" describe a one-element list under vnfs. Nested lists
// stack indices, as in "matrix[1][0]". Field names ending in _length or
// containing ".", "[" or "]" cannot be represented; model.Normalize
// rejects them at the edge.
package propbag
