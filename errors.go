/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import "errors"

// User-facing room errors. These reach clients verbatim as "error"
// notifications; everything else is logged and swallowed.
var (
	errRoomExists   = errors.New("room already exists")
	errRoomNotFound = errors.New("room not found")
	errRoomFull     = errors.New("room is full")
)
