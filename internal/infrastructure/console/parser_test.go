package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderListFixture = `
<table id="searchResultList">
  <thead><tr><th>Order</th></tr></thead>
  <tbody class="center">
    <tr>
      <td><input type="checkbox" class="chkbox" name="orderNo" value="1"></td>
      <td class="orderNum">2024-05-01<br><a href="#">A-100 (detail)</a><br>Follower pack</td>
    </tr>
  </tbody>
  <tbody class="center">
    <tr>
      <td><input type="checkbox" class="chkbox" name="orderNo" value="2"></td>
      <td class="orderNum">
        <div>2024-05-02</div>
        <div><strong>A-200</strong> split</div>
      </td>
    </tr>
  </tbody>
  <tbody class="center">
    <tr><td colspan="2">No order cell in this row</td></tr>
  </tbody>
  <tbody class="center">
    <tr>
      <td class="orderNum">2024-05-03</td>
    </tr>
  </tbody>
  <tbody class="center">
    <tr>
      <td class="orderNum">2024-05-04<br>A-300</td>
    </tr>
  </tbody>
</table>`

func TestParseOrderList(t *testing.T) {
	orders, err := ParseOrderList(orderListFixture)
	require.NoError(t, err)

	require.Len(t, orders, 3)
	assert.Equal(t, ListedOrder{Row: 0, MarketOrderID: "A-100", HasCheckbox: true}, orders[0])
	assert.Equal(t, ListedOrder{Row: 1, MarketOrderID: "A-200", HasCheckbox: true}, orders[1])
	assert.Equal(t, ListedOrder{Row: 4, MarketOrderID: "A-300", HasCheckbox: false}, orders[2])
}

func TestParseOrderList_Empty(t *testing.T) {
	orders, err := ParseOrderList(`<table id="searchResultList"></table>`)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestRenderedLines(t *testing.T) {
	orders, err := ParseOrderList(`<table><tbody class="center"><tr>
		<td class="orderNum">

		  2024-05-01

		  <br>   A-900   extra   words
		</td></tr></tbody></table>`)
	require.NoError(t, err)

	require.Len(t, orders, 1)
	assert.Equal(t, "A-900", orders[0].MarketOrderID)
}
