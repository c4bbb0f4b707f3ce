/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package api

import (
	"net/http"
	"strconv"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/gin-gonic/gin"

	model2 "github.com/blnkfinance/tally/api/model"
)

func respondError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error(), "code": apierror.CodeOf(err)})
}

func pathIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a whole number"})
		return 0, false
	}
	return index, true
}

// GetOrCreateLedger provisions the user's ledger on first login.
func (a Api) GetOrCreateLedger(c *gin.Context) {
	resp, err := a.tally.GetOrCreateLedger(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) GetLedger(c *gin.Context) {
	resp, err := a.tally.GetLedger(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) ListTransactions(c *gin.Context) {
	filter, err := model2.ParseFilter(c.Query("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := a.tally.ListTransactions(c.Request.Context(), c.Param("user_id"), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) RecordTransaction(c *gin.Context) {
	var newTransaction model2.RecordTransaction
	if err := c.ShouldBindJSON(&newTransaction); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := newTransaction.ValidateRecordTransaction(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err})
		return
	}

	resp, err := a.tally.RecordTransaction(c.Request.Context(), c.Param("user_id"), newTransaction.Direction(), newTransaction.ParsedAmount(), newTransaction.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func bindUpdate(c *gin.Context) (model2.UpdateTransaction, bool) {
	var update model2.UpdateTransaction
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return update, false
	}
	if err := update.ValidateUpdateTransaction(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err})
		return update, false
	}
	return update, true
}

func (a Api) UpdateTransaction(c *gin.Context) {
	update, ok := bindUpdate(c)
	if !ok {
		return
	}
	resp, err := a.tally.UpdateTransaction(c.Request.Context(), c.Param("user_id"), c.Param("id"), update.ParsedAmount(), update.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) DeleteTransaction(c *gin.Context) {
	resp, err := a.tally.DeleteTransaction(c.Request.Context(), c.Param("user_id"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateTransactionAt edits the entry at a history position. The optional
// transaction_id in the body guards against the position having moved.
func (a Api) UpdateTransactionAt(c *gin.Context) {
	index, ok := pathIndex(c)
	if !ok {
		return
	}
	update, ok := bindUpdate(c)
	if !ok {
		return
	}
	resp, err := a.tally.UpdateTransactionAt(c.Request.Context(), c.Param("user_id"), index, update.TransactionID, update.ParsedAmount(), update.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) DeleteTransactionAt(c *gin.Context) {
	index, ok := pathIndex(c)
	if !ok {
		return
	}
	resp, err := a.tally.DeleteTransactionAt(c.Request.Context(), c.Param("user_id"), index, c.Query("transaction_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) ResetLedger(c *gin.Context) {
	resp, err := a.tally.ResetLedger(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a Api) GetReport(c *gin.Context) {
	resp, err := a.tally.GetReport(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
