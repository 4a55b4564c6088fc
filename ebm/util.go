package ebm

import "log"

//HandleError aborts on errors that have no recovery path.
func HandleError(err error) {
	if err != nil {
		log.Panic(err)
	}
}
