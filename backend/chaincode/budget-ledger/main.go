package main

import (
	"log"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/openaudit/budgetledger/backend/chaincode/budget-ledger/chaincode"
)

func main() {
	budgetChaincode, err := contractapi.NewChaincode(&chaincode.SmartContract{})
	if err != nil {
		log.Panicf("Error creating budget-ledger chaincode: %v", err)
	}

	if err := budgetChaincode.Start(); err != nil {
		log.Panicf("Error starting budget-ledger chaincode: %v", err)
	}
}
