package common

// NoteSourceKeep is stored in the Note.source column for rows created by sync.
const NoteSourceKeep = "keep"

// RedactedValue replaces secret payload values in log output.
const RedactedValue = "***"
