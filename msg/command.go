package msg

import "github.com/mongodb/mongo-go-driver-core/wiremessage"

// NewCommand builds the OP_QUERY that runs an admin/database command
// against "<db>.$cmd", per spec.md §4.9's FindAndModify/RunCommand
// shape and core/msg's NewCommand.
func NewCommand(requestID int32, dbName string, slaveOK bool, cmd interface{}) wiremessage.Query {
	var flags wiremessage.QueryFlag
	if slaveOK {
		flags |= wiremessage.SlaveOK
	}
	return wiremessage.Query{
		RequestID:          requestID,
		Flags:              flags,
		FullCollectionName: dbName + ".$cmd",
		NumberToReturn:     -1,
		Query:              cmd,
	}
}
